package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"inakat/lifecycle-service/internal/lifecycle"
)

var (
	transitionsRole   string
	transitionsPolicy string
)

var transitionsCmd = &cobra.Command{
	Use:   "transitions",
	Short: "Print the transition table",
	Long:  "Prints, for every status, the targets each role may move an application to.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		policy, err := lifecycle.ParseAssignmentPolicy(transitionsPolicy)
		if err != nil {
			return err
		}
		roles := lifecycle.Roles
		if transitionsRole != "" {
			role, err := lifecycle.ParseRole(transitionsRole)
			if err != nil {
				return err
			}
			roles = []lifecycle.Role{role}
		}

		table := lifecycle.DefaultTable(policy)
		out := cmd.OutOrStdout()
		for _, role := range roles {
			fmt.Fprintf(out, "%s\n", role)
			for _, from := range lifecycle.AllStatuses() {
				targets := table.AllowedTargets(role, from)
				if len(targets) == 0 {
					continue
				}
				names := make([]string, len(targets))
				for i, t := range targets {
					names[i] = string(t)
					if table.NeedsContext(role, from, t) {
						names[i] += "*"
					}
				}
				fmt.Fprintf(out, "  %-20s -> %s\n", from, strings.Join(names, ", "))
			}
		}
		return nil
	},
}

func init() {
	transitionsCmd.Flags().StringVar(&transitionsRole, "role", "", "Only print edges for this role")
	transitionsCmd.Flags().StringVar(&transitionsPolicy, "assignment-policy", string(lifecycle.AssignmentWarn), "warn or block")
	rootCmd.AddCommand(transitionsCmd)
}
