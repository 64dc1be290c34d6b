package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/snapshot-sim/sim"
	"github.com/inference-sim/snapshot-sim/sim/codec"
	"github.com/inference-sim/snapshot-sim/sim/state"
)

var inspectCatalog string // Model catalog used to resolve references

// inspectCmd prints a summary of an init document.
var inspectCmd = &cobra.Command{
	Use:   "inspect <init.json>",
	Short: "Summarize the snapshot of an init document",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := inspectInit(os.Stdout, args[0], inspectCatalog); err != nil {
			logrus.Fatalf("Inspect failed: %v", err)
		}
	},
}

func inspectInit(w io.Writer, path, catalogPath string) error {
	catalog, err := sim.LoadCatalog(catalogPath)
	if err != nil {
		return err
	}
	doc, err := state.LoadInit(path, codec.NewDecoder(codec.NewRepository(catalog.Objects()...)))
	if err != nil {
		return err
	}
	snap := doc.Snapshot

	counts := make(map[string]int)
	for _, ev := range snap.Events() {
		counts[sim.EventName(ev)]++
	}
	names := make([]string, 0, len(counts))
	for n := range counts {
		names = append(names, n)
	}
	sort.Strings(names)

	fmt.Fprintf(w, "=== Snapshot %s at %g ===\n", doc.ID, doc.PointInTime)
	fmt.Fprintf(w, "Events: %d\n", len(snap.Events()))
	for _, n := range names {
		fmt.Fprintf(w, "  %-30s %d\n", n, counts[n])
	}
	fmt.Fprintf(w, "Pending adjustments: %v\n", snap.PolicyIDs())
	for _, st := range snap.AdjustorStates() {
		fmt.Fprintf(w, "  %s: latest=%g cooldownEnd=%g inCooldown=%d\n",
			st.Policy.ID, st.LatestAdjustment, st.CooldownEnd, st.AdjustmentsInCooldown)
	}
	return nil
}

func init() {
	inspectCmd.Flags().StringVar(&inspectCatalog, "catalog", "", "Model catalog YAML")
	_ = inspectCmd.MarkFlagRequired("catalog")
}
