package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/mailsearch/internal/async"
	"github.com/Aman-CERP/mailsearch/internal/embed"
	"github.com/Aman-CERP/mailsearch/internal/output"
)

// statusJSON is the --json document.
type statusJSON struct {
	OwnerID        string     `json:"ownerId"`
	Backend        string     `json:"backend"`
	Documents      int        `json:"documents"`
	Embeddings     int        `json:"embeddings"`
	IncompleteScan bool       `json:"incompleteScan"`
	Provider       string     `json:"provider"`
	Available      bool       `json:"available"`
	Dimensions     int        `json:"dimensions"`
	Canonical      int        `json:"canonicalDimensions"`
	Quota          *quotaJSON `json:"quota,omitempty"`
}

type quotaJSON struct {
	State         string     `json:"state"`
	CooldownUntil *time.Time `json:"cooldownUntil,omitempty"`
	Cooldown      string     `json:"cooldown"`
}

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index and embedding provider status",
		Long: `Display information about the owner's index:
  - Number of indexed messages and embeddings
  - Whether the last Maildir scan was interrupted
  - Store backend
  - Embedding provider, its availability and quota state`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(ctx, cfg, appOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	owner := ownerID()
	st := statusJSON{
		OwnerID:        owner,
		Backend:        a.store.Backend(),
		IncompleteScan: async.HasIncompleteScan(cfg.Paths.DataDir),
		Provider:       a.provider.Name(),
		Available:      a.search.EmbeddingServiceAvailable(ctx),
		Dimensions:     a.provider.Dimensions(),
		Canonical:      cfg.Embeddings.CanonicalDimensions,
	}
	if st.Documents, err = a.store.CountDocuments(ctx, owner); err != nil {
		return err
	}
	if st.Embeddings, err = a.store.CountEmbeddings(ctx, owner); err != nil {
		return err
	}
	if gov, ok := embed.QuotaOf(a.provider); ok {
		snap := gov.Snapshot()
		q := &quotaJSON{State: snap.State.String(), Cooldown: snap.CooldownDuration.String()}
		if snap.State == embed.QuotaCooldown {
			until := snap.CooldownUntil
			q.CooldownUntil = &until
		}
		st.Quota = q
	}

	out := output.New(cmd.OutOrStdout())
	if jsonOutput {
		return out.JSON(st)
	}

	out.Header("mailsearch status")
	out.KeyValue("Owner", st.OwnerID)
	out.KeyValue("Backend", st.Backend)
	out.KeyValue("Messages", st.Documents)
	out.KeyValue("Embeddings", st.Embeddings)
	if st.IncompleteScan {
		out.Warning("Last Maildir scan did not finish; run mailsearch index")
	}
	out.Newline()
	out.KeyValue("Provider", st.Provider)
	out.KeyValue("Dimensions", st.Dimensions)
	out.KeyValue("Stored as", st.Canonical)
	if st.Available {
		out.Success("Embedding provider available")
	} else {
		out.Warning("Embedding provider unavailable; semantic search returns no results")
	}
	if st.Quota != nil {
		out.KeyValue("Quota", st.Quota.State)
		if st.Quota.CooldownUntil != nil {
			out.KeyValue("Cooling until", st.Quota.CooldownUntil.Local().Format(time.DateTime))
		}
	}
	if st.Documents > 0 && st.Embeddings < st.Documents {
		out.Statusf("", "%d messages not yet embedded", st.Documents-st.Embeddings)
	}
	return nil
}
