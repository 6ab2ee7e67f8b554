// SPDX-License-Identifier: MIT
package vaultsync

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/skaphos/vaultsync/internal/history"
	"github.com/skaphos/vaultsync/internal/model"
	"github.com/skaphos/vaultsync/internal/remotecheck"
)

// describeOutput is the full machine-readable view of one vault.
type describeOutput struct {
	Vault      string                 `json:"vault" yaml:"vault"`
	ConfigPath string                 `json:"config_path" yaml:"config_path"`
	Status     model.RepositoryStatus `json:"status" yaml:"status"`
	Remotes    []model.Remote         `json:"remotes,omitempty" yaml:"remotes,omitempty"`
	Identity   describeIdentity       `json:"identity" yaml:"identity"`
	Remote     describeRemoteCheck    `json:"remote_check" yaml:"remote_check"`
	History    []history.Record       `json:"history,omitempty" yaml:"history,omitempty"`
}

type describeIdentity struct {
	Name             string `json:"name,omitempty" yaml:"name,omitempty"`
	Email            string `json:"email,omitempty" yaml:"email,omitempty"`
	CredentialHelper string `json:"credential_helper,omitempty" yaml:"credential_helper,omitempty"`
}

type describeRemoteCheck struct {
	Outcome     string `json:"outcome" yaml:"outcome"`
	DeclaredURL string `json:"declared_url,omitempty" yaml:"declared_url,omitempty"`
	LiveURL     string `json:"live_url,omitempty" yaml:"live_url,omitempty"`
	Warning     string `json:"warning,omitempty" yaml:"warning,omitempty"`
}

// describeHistoryLimit bounds how many recent records describe includes.
const describeHistoryLimit = 10

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Dump the vault's full state for inspection or scripting",
	RunE: func(cmd *cobra.Command, args []string) error {
		debugf(cmd, "starting describe")
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")

		ctx := cmd.Context()
		if !app.adapter.IsAvailable(ctx) {
			return fmt.Errorf("version-control backend not found; install git or set git_bin")
		}
		if !app.adapter.IsRepository(ctx, app.vault) {
			return fmt.Errorf("%s is not a git repository", app.vault)
		}
		status, err := app.adapter.Status(ctx, app.vault)
		if err != nil {
			return err
		}
		remotes, err := app.adapter.Remotes(ctx, app.vault)
		if err != nil {
			return err
		}

		// Identity values are informational; an unset key is not an error.
		name, _ := app.adapter.UserName(ctx, app.vault)
		email, _ := app.adapter.UserEmail(ctx, app.vault)
		helper, _ := app.adapter.CredentialHelper(ctx, app.vault)

		finding := remotecheck.Check(app.cfg.RemoteURL, remotes)
		output := describeOutput{
			Vault:      app.vault,
			ConfigPath: app.cfgPath,
			Status:     status,
			Remotes:    remotes,
			Identity: describeIdentity{
				Name:             name,
				Email:            email,
				CredentialHelper: helper,
			},
			Remote: describeRemoteCheck{
				Outcome:     string(finding.Outcome),
				DeclaredURL: finding.DeclaredURL,
				LiveURL:     finding.LiveURL,
				Warning:     remotecheck.Describe(finding),
			},
			History: recentHistory(app.vault),
		}

		switch strings.ToLower(strings.TrimSpace(format)) {
		case "json":
			data, err := json.MarshalIndent(output, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			logOutputWriteFailure(cmd, "describe json", err)
		case "yaml":
			data, err := yaml.Marshal(output)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), string(data))
			logOutputWriteFailure(cmd, "describe yaml", err)
		default:
			return fmt.Errorf("unsupported format %q", format)
		}
		debugf(cmd, "describe completed")
		return nil
	},
}

func init() {
	describeCmd.Flags().StringP("format", "o", "yaml", "output format: yaml or json")
	rootCmd.AddCommand(describeCmd)
}

func recentHistory(vault string) []history.Record {
	path, err := history.DefaultPath()
	if err != nil {
		return nil
	}
	log, err := history.Load(path)
	if err != nil {
		return nil
	}
	records := log.ForVault(vault)
	if len(records) > describeHistoryLimit {
		records = records[len(records)-describeHistoryLimit:]
	}
	return records
}
