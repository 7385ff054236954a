package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	yaml "go.yaml.in/yaml/v3"

	"github.com/duskline/duskline/internal/config"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage saved run profiles",
	Long: `A profile is a named bundle of run settings (source, ordering, workers,
notification channels) saved under ~/.duskline/profiles/. Apply one to a
run with --profile NAME.`,
}

var (
	profSaveEventDB    string
	profSaveEventFile  string
	profSaveOrgsFile   string
	profSaveOrdering   string
	profSaveWorkers    int
	profSaveTimeout    int
	profSaveRetries    int
	profSaveResultsDir string
	profSaveChannels   []string
)

var profileSaveCmd = &cobra.Command{
	Use:   "save NAME",
	Short: "Save a run profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := config.Profile{
			Name:          args[0],
			EventDBPath:   profSaveEventDB,
			EventFilePath: profSaveEventFile,
			OrgsFilePath:  profSaveOrgsFile,
			Ordering:      profSaveOrdering,
			Workers:       profSaveWorkers,
			BaseTimeout:   profSaveTimeout,
			MaxRetries:    profSaveRetries,
			ResultsDir:    profSaveResultsDir,
			Channels:      profSaveChannels,
		}
		if p.Ordering != "" {
			if _, err := config.ParseOrdering(p.Ordering); err != nil {
				return err
			}
		}
		if err := config.SaveProfile(p); err != nil {
			return err
		}
		fmt.Printf("Saved profile %q\n", p.Name)
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := config.ListProfiles()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("No profiles saved.")
			return nil
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Print a saved profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.LoadProfile(args[0])
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(p)
	},
}

func init() {
	profileSaveCmd.Flags().StringVar(&profSaveEventDB, "event-db", "", "push-events database path")
	profileSaveCmd.Flags().StringVar(&profSaveEventFile, "event-file", "", "push-events export path")
	profileSaveCmd.Flags().StringVar(&profSaveOrgsFile, "orgs-file", "", "organization list path")
	profileSaveCmd.Flags().StringVar(&profSaveOrdering, "ordering", "", "target ordering policy")
	profileSaveCmd.Flags().IntVar(&profSaveWorkers, "parallel", 0, "worker count")
	profileSaveCmd.Flags().IntVar(&profSaveTimeout, "base-timeout", 0, "base detector timeout in seconds")
	profileSaveCmd.Flags().IntVar(&profSaveRetries, "max-retries", 0, "detector timeout retries")
	profileSaveCmd.Flags().StringVar(&profSaveResultsDir, "results-dir", "", "results root directory")
	profileSaveCmd.Flags().StringSliceVar(&profSaveChannels, "notify", nil, "notification channels")

	profileCmd.AddCommand(profileSaveCmd, profileListCmd, profileShowCmd)
}
