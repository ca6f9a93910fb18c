package cmd

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestMustGetFlags(t *testing.T) {
	root := &cobra.Command{Use: "root"}
	root.PersistentFlags().String("store", "", "")
	child := &cobra.Command{Use: "child", RunE: func(cmd *cobra.Command, args []string) error { return nil }}
	child.Flags().Bool("force", false, "")
	child.Flags().Int("top-k", 0, "")
	child.Flags().Float64("threshold", 0, "")
	child.Flags().StringSlice("allowed-origins", nil, "")
	root.AddCommand(child)

	root.SetArgs([]string{"child", "--store", "postgres", "--force", "--top-k", "5",
		"--threshold", "0.7", "--allowed-origins", "http://a,http://b"})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if got := mustGetString(child, "store"); got != "postgres" {
		t.Errorf("store = %q, want postgres from the persistent flag", got)
	}
	if !mustGetBool(child, "force") {
		t.Error("force = false, want true")
	}
	if got := mustGetInt(child, "top-k"); got != 5 {
		t.Errorf("top-k = %d, want 5", got)
	}
	if got := mustGetFloat64(child, "threshold"); got != 0.7 {
		t.Errorf("threshold = %v, want 0.7", got)
	}
	if got := mustGetStringSlice(child, "allowed-origins"); len(got) != 2 || got[1] != "http://b" {
		t.Errorf("allowed-origins = %v", got)
	}
}

func TestMustGetPanicsOnUnknownFlag(t *testing.T) {
	cmd := &cobra.Command{Use: "x"}
	defer func() {
		if recover() == nil {
			t.Error("expected panic for an unregistered flag")
		}
	}()
	mustGetBool(cmd, "missing")
}
