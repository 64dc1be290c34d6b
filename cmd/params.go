package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/snapshot-sim/sim"
	"github.com/inference-sim/snapshot-sim/sim/behavior"
	"github.com/inference-sim/snapshot-sim/sim/bootstrap"
)

var (
	paramsCatalog  string   // Model catalog used to resolve policy ids
	paramsBehavior string   // Detector parameters YAML
	paramsPolicies []string // Policies enacted at the start of the next run
)

// paramsCmd writes the bootstrap parameters document of the next run.
var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Write the bootstrap parameters of the next run",
	Run: func(cmd *cobra.Command, args []string) {
		if err := writeOtherInit(os.Stdout, paramsCatalog, paramsBehavior, paramsPolicies); err != nil {
			logrus.Fatalf("Params failed: %v", err)
		}
	},
}

func writeOtherInit(w io.Writer, catalogPath, behaviorPath string, policyIDs []string) error {
	catalog, err := sim.LoadCatalog(catalogPath)
	if err != nil {
		return err
	}
	other := &bootstrap.OtherInit{}
	for _, id := range policyIDs {
		p, ok := catalog.Policy(id)
		if !ok {
			return fmt.Errorf("%w: %q", bootstrap.ErrUnknownPolicy, id)
		}
		other.IncomingPolicies = append(other.IncomingPolicies, p)
	}
	if behaviorPath != "" {
		if other.BehaviorParameters, err = behavior.LoadParameters(behaviorPath); err != nil {
			return err
		}
	}
	data, err := bootstrap.EncodeOtherInit(other)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func init() {
	paramsCmd.Flags().StringVar(&paramsCatalog, "catalog", "", "Model catalog YAML")
	paramsCmd.Flags().StringVar(&paramsBehavior, "behavior", "", "Detector parameters YAML")
	paramsCmd.Flags().StringSliceVar(&paramsPolicies, "policy", nil, "Policy enacted at the start of the next run (repeatable)")
	_ = paramsCmd.MarkFlagRequired("catalog")
}
