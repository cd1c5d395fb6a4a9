package cmd

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/solatis/formkeeper/internal/core/auth"
	"github.com/solatis/formkeeper/internal/core/config"
	"github.com/solatis/formkeeper/internal/core/db"
	"github.com/solatis/formkeeper/internal/types"
	"github.com/spf13/cobra"
)

func newAPIKeyCmd() *cobra.Command {
	apiKeyCmd := &cobra.Command{
		Use:   "apikey",
		Short: "Issue, list and revoke API keys",
	}
	apiKeyCmd.AddCommand(newAPIKeyCreateCmd(), newAPIKeyListCmd(), newAPIKeyRevokeCmd())
	return apiKeyCmd
}

func newAPIKeyCreateCmd() *cobra.Command {
	var tenant, name, requestedSecret string
	c := &cobra.Command{
		Use:   "create",
		Short: "Issue a new API key for a tenant",
		Long: `Create issues a key signed with one of the FK_HMAC_SECRET secrets and
prints it once. Only its HMAC is stored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secrets, err := config.HMACSecrets()
			if err != nil {
				return fmt.Errorf("failed to load HMAC secrets: %w", err)
			}
			secretID, err := pickSecret(secrets, requestedSecret)
			if err != nil {
				return err
			}

			database, err := openDB()
			if err != nil {
				return err
			}
			defer database.Close()
			if err := db.RequireMigrations(database); err != nil {
				return err
			}
			queries, err := db.LoadQueries(database)
			if err != nil {
				return fmt.Errorf("failed to load queries: %w", err)
			}

			key, keyHash, err := auth.GenerateAPIKey(secretID, secrets[secretID])
			if err != nil {
				return err
			}
			id, err := uuid.NewV7()
			if err != nil {
				return fmt.Errorf("failed to generate API key ID: %w", err)
			}
			record := db.APIKey{
				APIKeyID:  id.String(),
				TenantID:  types.TenantID(tenant),
				Name:      name,
				SecretID:  secretID,
				CreatedAt: time.Now().UTC(),
			}
			if err := db.NewAPIKeyStore(queries).InsertAPIKey(cmd.Context(), record, keyHash); err != nil {
				return err
			}

			logger.Info("API key issued", "api_key_id", record.APIKeyID, "tenant_id", tenant, "secret_id", secretID)
			fmt.Fprintf(cmd.OutOrStdout(), "API key ID: %s\nAPI key:    %s\n", record.APIKeyID, key)
			return nil
		},
	}
	c.Flags().StringVar(&tenant, "tenant", "", "tenant that owns the key")
	c.Flags().StringVar(&name, "name", "", "human readable key name")
	c.Flags().StringVar(&requestedSecret, "secret-id", "", "HMAC secret to sign with (required when several are configured)")
	_ = c.MarkFlagRequired("tenant")
	_ = c.MarkFlagRequired("name")
	return c
}

// pickSecret selects the signing secret: the requested one, or the only
// one configured.
func pickSecret(secrets map[string][]byte, requested string) (string, error) {
	if len(secrets) == 0 {
		return "", fmt.Errorf("no HMAC secrets configured (set FK_HMAC_SECRET environment variable)")
	}
	if requested != "" {
		if _, ok := secrets[requested]; !ok {
			return "", fmt.Errorf("HMAC secret %q is not configured", requested)
		}
		return requested, nil
	}
	if len(secrets) > 1 {
		ids := make([]string, 0, len(secrets))
		for id := range secrets {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return "", fmt.Errorf("several HMAC secrets configured, choose one with --secret-id (%s)", strings.Join(ids, ", "))
	}
	for id := range secrets {
		return id, nil
	}
	return "", nil
}

func newAPIKeyListCmd() *cobra.Command {
	var tenant string
	c := &cobra.Command{
		Use:   "list",
		Short: "List a tenant's API keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDB()
			if err != nil {
				return err
			}
			defer database.Close()
			queries, err := db.LoadQueries(database)
			if err != nil {
				return fmt.Errorf("failed to load queries: %w", err)
			}

			keys, err := db.NewAPIKeyStore(queries).ListAPIKeys(cmd.Context(), types.TenantID(tenant))
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSECRET\tCREATED\tLAST USED\tSTATUS")
			for _, k := range keys {
				lastUsed := "-"
				if k.LastUsedAt.Valid {
					lastUsed = k.LastUsedAt.Time.UTC().Format(time.RFC3339)
				}
				state := "active"
				if k.RevokedAt.Valid {
					state = "revoked"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					k.APIKeyID, k.Name, k.SecretID, k.CreatedAt.UTC().Format(time.RFC3339), lastUsed, state)
			}
			return w.Flush()
		},
	}
	c.Flags().StringVar(&tenant, "tenant", "", "tenant whose keys to list")
	_ = c.MarkFlagRequired("tenant")
	return c
}

func newAPIKeyRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke API_KEY_ID",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDB()
			if err != nil {
				return err
			}
			defer database.Close()
			queries, err := db.LoadQueries(database)
			if err != nil {
				return fmt.Errorf("failed to load queries: %w", err)
			}

			if err := db.NewAPIKeyStore(queries).RevokeAPIKey(cmd.Context(), args[0]); err != nil {
				return err
			}
			logger.Info("API key revoked", "api_key_id", args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", args[0])
			return nil
		},
	}
}
