package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed models.yaml
var modelsYAML []byte

// Run modes and their sub-options, as accepted in MODE, IMAGE_TYPE and ADD_MODE.
const (
	ModeAdd    = "add"
	ModeSearch = "search"

	ImageTypeRef   = "ref"
	ImageTypeGroup = "group"

	AddModeSingle = "single"
	AddModeFolder = "folder"
)

const (
	defaultThreshold  = 0.8
	defaultModel      = "Facenet"
	defaultMetric     = "cosine"
	defaultVisionURL  = "http://localhost:8000"
	defaultSQLitePath = "faces.db"
)

type Config struct {
	Run     RunConfig
	Store   StoreConfig
	Vision  VisionConfig
	Convert ConvertConfig
	Web     WebConfig
	Log     LogConfig
	Models  ModelCatalog
}

// RunConfig holds the workflow selection that used to live in process-wide env vars.
type RunConfig struct {
	Mode          string
	ImageType     string
	AddMode       string
	ImagePath     string
	FolderPath    string
	Threshold     *float64 // nil means every candidate is reported
	// ThresholdSet records an explicit SIMILARITY_THRESHOLD; otherwise non-cosine
	// metrics use the model catalog.
	ThresholdSet bool
	// ThresholdRaw keeps an unparsable SIMILARITY_THRESHOLD for Validate.
	ThresholdRaw string
	ModelName     string
	Metric        string
	SearchAgainst string // "group" or "reference"
	FaceSelection string // "first", "largest" or "confident"
	MinConfidence float64
}

type StoreConfig struct {
	Backend       string // sqlite, postgres or mariadb
	SQLitePath    string
	DatabaseURL   string // PostgreSQL connection URL
	MariaDBDSN    string
	MaxOpenConns  int
	MaxIdleConns  int
	HNSWIndexPath string // optional, index is rebuilt from the store when empty
}

type VisionConfig struct {
	DetectorURL    string
	EmbeddingURL   string
	TimeoutSeconds int
}

type ConvertConfig struct {
	InputPath   string
	OutputPath  string
	Quality     int
	Optimize    bool
	Progressive bool
	RawDecoder  string
	HEIFDecoder string
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
	UploadDir      string
}

type LogConfig struct {
	Level  string
	Format string
}

// ModelCatalog is the embedded list of known embedding models.
type ModelCatalog struct {
	Models map[string]ModelInfo `yaml:"models"`
}

type ModelInfo struct {
	Dim        int                `yaml:"dim"`
	Thresholds map[string]float64 `yaml:"thresholds"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envBool accepts the strconv.ParseBool spellings and falls back to defaultVal otherwise.
func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envThreshold parses SIMILARITY_THRESHOLD. "none" disables thresholding.
// It reports whether the variable was set and returns the raw value when it does not parse.
func envThreshold(key string, defaultVal float64) (threshold *float64, set bool, invalid string) {
	s := strings.TrimSpace(os.Getenv(key))
	switch {
	case s == "":
		return &defaultVal, false, ""
	case strings.EqualFold(s, "none"):
		return nil, true, ""
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return &defaultVal, false, s
	}
	return &f, true, ""
}

func splitList(s string) []string {
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// LoadModelCatalog parses the embedded models.yaml.
func LoadModelCatalog() ModelCatalog {
	var catalog ModelCatalog
	if err := yaml.Unmarshal(modelsYAML, &catalog); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded models.yaml: " + err.Error())
	}
	return catalog
}

func Load() *Config {
	threshold, thresholdSet, thresholdRaw := envThreshold("SIMILARITY_THRESHOLD", defaultThreshold)
	return &Config{
		Run: RunConfig{
			Mode:          strings.ToLower(os.Getenv("MODE")),
			ImageType:     strings.ToLower(envString("IMAGE_TYPE", ImageTypeRef)),
			AddMode:       strings.ToLower(envString("ADD_MODE", AddModeSingle)),
			ImagePath:     os.Getenv("IMAGE_PATH"),
			FolderPath:    os.Getenv("FOLDER_PATH"),
			Threshold:     threshold,
			ThresholdSet:  thresholdSet,
			ThresholdRaw:  thresholdRaw,
			ModelName:     envString("MODEL_NAME", defaultModel),
			Metric:        strings.ToLower(envString("METRIC", defaultMetric)),
			SearchAgainst: strings.ToLower(envString("SEARCH_AGAINST", "group")),
			FaceSelection: strings.ToLower(envString("FACE_SELECTION", "first")),
			MinConfidence: envFloat("MIN_FACE_CONFIDENCE", 0),
		},
		Store: StoreConfig{
			Backend:       strings.ToLower(envString("STORE_BACKEND", "sqlite")),
			SQLitePath:    envString("SQLITE_PATH", defaultSQLitePath),
			DatabaseURL:   os.Getenv("DATABASE_URL"),
			MariaDBDSN:    os.Getenv("MARIADB_DSN"),
			MaxOpenConns:  envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:  envInt("DATABASE_MAX_IDLE_CONNS", 2),
			HNSWIndexPath: os.Getenv("HNSW_INDEX_PATH"),
		},
		Vision: VisionConfig{
			DetectorURL:    envString("DETECTOR_URL", defaultVisionURL),
			EmbeddingURL:   envString("EMBEDDING_URL", defaultVisionURL),
			TimeoutSeconds: envInt("VISION_TIMEOUT_SECONDS", 60),
		},
		Convert: ConvertConfig{
			InputPath:   os.Getenv("INPUT_PATH"),
			OutputPath:  os.Getenv("OUTPUT_PATH"),
			Quality:     envInt("QUALITY", 85),
			Optimize:    envBool("OPTIMIZE", true),
			Progressive: envBool("PROGRESSIVE", false),
			RawDecoder:  envString("RAW_DECODER", "dcraw"),
			HEIFDecoder: envString("HEIF_DECODER", "heif-convert"),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			AllowedOrigins: splitList(os.Getenv("WEB_ALLOWED_ORIGINS")),
			UploadDir:      envString("WEB_UPLOAD_DIR", os.TempDir()),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "pretty"),
		},
		Models: LoadModelCatalog(),
	}
}

// Model returns catalog information for a model, and whether it is known.
func (c *Config) Model(name string) (ModelInfo, bool) {
	info, ok := c.Models.Models[name]
	return info, ok
}

// ThresholdFor returns the threshold to use for a metric. Cosine and any explicitly set
// SIMILARITY_THRESHOLD use the configured value; otherwise the model catalog is consulted.
func (c *Config) ThresholdFor(metric string) *float64 {
	if metric == defaultMetric || c.Run.ThresholdSet {
		return c.Run.Threshold
	}
	if info, ok := c.Model(c.Run.ModelName); ok {
		if v, ok := info.Thresholds[metric]; ok {
			return &v
		}
	}
	return c.Run.Threshold
}

// ValidateStore checks the storage settings.
func (c *Config) ValidateStore() error {
	switch c.Store.Backend {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite backend")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
	case "mariadb":
		if c.Store.MariaDBDSN == "" {
			return errors.New("MARIADB_DSN is required for the mariadb backend")
		}
	default:
		return fmt.Errorf("invalid STORE_BACKEND '%s'. Use 'sqlite', 'postgres' or 'mariadb'", c.Store.Backend)
	}
	return nil
}

// Validate checks the env-driven run selection. It touches the filesystem only to stat paths.
func (c *Config) Validate() error {
	var errs []error

	r := c.Run
	switch r.Mode {
	case ModeAdd:
		switch r.ImageType {
		case ImageTypeRef:
			errs = append(errs, checkFile("IMAGE_PATH", r.ImagePath))
		case ImageTypeGroup:
			switch r.AddMode {
			case AddModeFolder:
				errs = append(errs, checkDir("FOLDER_PATH", r.FolderPath))
			case AddModeSingle:
				errs = append(errs, checkFile("IMAGE_PATH", r.ImagePath))
			default:
				errs = append(errs, fmt.Errorf("invalid ADD_MODE '%s'. Use 'single' or 'folder'", r.AddMode))
			}
		default:
			errs = append(errs, fmt.Errorf("invalid IMAGE_TYPE '%s'. Use 'ref' or 'group'", r.ImageType))
		}
	case ModeSearch:
		errs = append(errs, checkFile("IMAGE_PATH", r.ImagePath))
		if r.SearchAgainst != "group" && r.SearchAgainst != "reference" {
			errs = append(errs, fmt.Errorf("invalid SEARCH_AGAINST '%s'. Use 'group' or 'reference'", r.SearchAgainst))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid MODE '%s'. Use 'add' or 'search'", r.Mode))
	}

	if r.ThresholdRaw != "" {
		errs = append(errs, fmt.Errorf("invalid SIMILARITY_THRESHOLD '%s'. Use a number or 'none'", r.ThresholdRaw))
	}
	if r.Metric != "cosine" && r.Metric != "euclidean" {
		errs = append(errs, fmt.Errorf("invalid METRIC '%s'. Use 'cosine' or 'euclidean'", r.Metric))
	}
	switch r.FaceSelection {
	case "first", "largest", "confident":
	default:
		errs = append(errs, fmt.Errorf("invalid FACE_SELECTION '%s'. Use 'first', 'largest' or 'confident'", r.FaceSelection))
	}

	errs = append(errs, c.ValidateStore())
	return errors.Join(errs...)
}

func checkFile(name, path string) error {
	if path == "" {
		return fmt.Errorf("%s is required", name)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s '%s' is invalid or does not exist", name, path)
	}
	if info.IsDir() {
		return fmt.Errorf("%s '%s' is a directory", name, path)
	}
	return nil
}

func checkDir(name, path string) error {
	if path == "" {
		return fmt.Errorf("%s is required", name)
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%s '%s' is invalid or does not exist", name, path)
	}
	return nil
}
