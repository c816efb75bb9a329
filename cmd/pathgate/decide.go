package main

import (
	"fmt"
	"net/url"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newDecideCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "decide URL...",
		Short: "Print the redirect decision for each URL without serving",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadOptional(configPath)
			if err != nil {
				return err
			}
			mw, err := cfg.Middleware()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, raw := range args {
				u, err := url.Parse(raw)
				if err != nil {
					return fmt.Errorf("parse %q: %w", raw, err)
				}
				d := mw.Table().Decide(u)
				if !d.Redirect() || !mw.Allowed(u.Path) {
					if _, err := fmt.Fprintf(out, "%s\tpass\n", raw); err != nil {
						return err
					}
					continue
				}
				if _, err := fmt.Fprintf(out, "%s\t%d %s\n", raw, mw.Status(), d.Location); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: built-in rules)")

	return cmd
}

func newRulesCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print the effective redirect rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadOptional(configPath)
			if err != nil {
				return err
			}
			mw, err := cfg.Middleware()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tRULE\tDISPATCHED")
			for i, rule := range mw.Table().Rules() {
				fmt.Fprintf(tw, "%d\t%s\t%t\n", i, rule, mw.Allowed(rule.Match))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: built-in rules)")

	return cmd
}
