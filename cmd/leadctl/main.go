// Command leadctl runs migrations and bulk lead imports and exports against the database.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"buyer_crm_backend/internal/leads"
	"buyer_crm_backend/internal/leads/domain"
	"buyer_crm_backend/internal/leads/repository"
	"buyer_crm_backend/platform/config"
	"buyer_crm_backend/platform/db"
	"buyer_crm_backend/platform/logger"
	"buyer_crm_backend/platform/validator"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "leadctl",
		Short:         "Buyer lead maintenance tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMigrateCmd(), newImportCmd(), newExportCmd())
	return root
}

// actorOptions identify who an offline import or export runs as.
type actorOptions struct {
	owner string
	email string
	role  string
}

func (o *actorOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.owner, "owner", "", "Owner user UUID (required)")
	cmd.Flags().StringVar(&o.email, "email", "", "Email recorded in change history")
	cmd.Flags().StringVar(&o.role, "role", string(domain.RoleUser), "Role to act with: USER or ADMIN")
	_ = cmd.MarkFlagRequired("owner")
}

func (o *actorOptions) identity() (domain.Identity, error) {
	id, err := uuid.Parse(strings.TrimSpace(o.owner))
	if err != nil {
		return domain.Identity{}, fmt.Errorf("invalid --owner: %w", err)
	}
	role := domain.Role(strings.ToUpper(strings.TrimSpace(o.role)))
	if role != domain.RoleUser && role != domain.RoleAdmin {
		return domain.Identity{}, fmt.Errorf("invalid --role %q: must be USER or ADMIN", o.role)
	}
	return domain.Identity{ID: id, Role: role, Email: strings.TrimSpace(o.email)}, nil
}

// session is an open database connection plus the lead module built on it.
type session struct {
	log    *logger.Logger
	pool   *pgxpool.Pool
	module *leads.Module
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.LoadTooling()
	if err != nil {
		return nil, err
	}
	log := logger.NewWithWriter(cfg.Env, os.Stderr)

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	module := leads.NewModule(repository.New(pool), validator.New(), nil, log)
	return &session{log: log, pool: pool, module: module}, nil
}

func (s *session) Close() {
	s.pool.Close()
}
