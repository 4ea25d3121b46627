// Command seed-agent provisions a support agent for a tenant.
//
//	seed-agent -tenant <uuid> -name "Lena" -email lena@example.com -password ... -role lead
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/helpline-hq/support-desk/internal/config"
	"github.com/helpline-hq/support-desk/internal/domain"
	"github.com/helpline-hq/support-desk/internal/observability"
	"github.com/helpline-hq/support-desk/internal/persistence"
	"github.com/helpline-hq/support-desk/internal/repository"
	"github.com/helpline-hq/support-desk/internal/service"
)

func main() {
	tenantID := flag.String("tenant", "", "tenant id")
	name := flag.String("name", "", "agent display name")
	email := flag.String("email", "", "agent login email")
	password := flag.String("password", "", "initial password")
	role := flag.String("role", string(domain.AgentRoleAgent), "agent, lead or admin")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		AgentRepo: repository.NewAgentRepository(pg.PoolHandle()),
	})
	agent, err := authService.CreateAgent(ctx, *tenantID, *name, *email, *password, domain.AgentRole(*role))
	if err != nil {
		logger.Fatal("failed to create agent", zap.Error(err))
	}
	logger.Info("agent created",
		zap.String("agent_id", agent.ID),
		zap.String("tenant_id", agent.TenantID),
		zap.String("role", string(agent.Role)),
	)
}
