package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/xavierca1/prospect-pipeline/internal/app"
	"github.com/xavierca1/prospect-pipeline/internal/config"
	"github.com/xavierca1/prospect-pipeline/internal/entity"
	"github.com/xavierca1/prospect-pipeline/internal/infra/database"
	"github.com/xavierca1/prospect-pipeline/internal/usecase"
)

// migrateCmd applies embedded migrations
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd.Context(), func(db *sql.DB, _ config.Config, _ *zap.Logger) error {
			applied, err := database.Migrate(cmd.Context(), db)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			}
			for _, name := range applied {
				fmt.Fprintln(cmd.OutOrStdout(), "applied", name)
			}
			return nil
		})
	},
}

// resetCmd returns a prospect to cazado
var resetCmd = &cobra.Command{
	Use:   "reset <prospect-id>",
	Short: "Send a prospect back to the start of the pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd.Context(), func(db *sql.DB, _ config.Config, logger *zap.Logger) error {
			repo := database.NewProspectRepository(db)
			if err := repo.Reset(cmd.Context(), args[0], time.Now().UTC()); err != nil {
				if errors.Is(err, entity.ErrNotFound) {
					return fmt.Errorf("prospect %s not found", args[0])
				}
				return err
			}
			logger.Info("prospect resetado", zap.String("prospect_id", args[0]))
			fmt.Fprintf(cmd.OutOrStdout(), "prospect %s reset to %s\n", args[0], entity.StatusHunted)
			return nil
		})
	},
}

var toolCmd = &cobra.Command{
	Use:   "tool",
	Short: "Manage the discovery tool catalog",
}

var (
	toolPlatform   string
	toolAudience   string
	toolActor      string
	toolConfidence int
)

// toolAddCmd upserts a catalog entry by name
var toolAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or update a discovery tool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		platform := entity.Platform(toolPlatform)
		audience := entity.Audience(toolAudience)
		if !platform.Valid() {
			return fmt.Errorf("invalid platform %q", toolPlatform)
		}
		if !audience.Valid() {
			return fmt.Errorf("invalid audience %q", toolAudience)
		}
		if toolActor == "" {
			return errors.New("--actor is required")
		}
		if toolConfidence < 0 || toolConfidence > 100 {
			return errors.New("--confidence must be between 0 and 100")
		}

		return withDB(cmd.Context(), func(db *sql.DB, _ config.Config, _ *zap.Logger) error {
			tool := entity.NewToolCatalogEntry(args[0], platform, audience, toolActor, toolConfidence)
			if err := database.NewToolRepository(db).Upsert(cmd.Context(), tool); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tool %s registered for %s/%s\n", tool.Name, platform, audience)
			return nil
		})
	},
}

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Register paying clients",
}

var clientInput usecase.CreateClientInput

var clientCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a client",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd.Context(), func(db *sql.DB, _ config.Config, logger *zap.Logger) error {
			uc := usecase.NewOnboarding(database.NewClientRepository(db), database.NewCampaignRepository(db), logger, nil)
			out, err := uc.CreateClient(cmd.Context(), clientInput)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		})
	},
}

var campaignCmd = &cobra.Command{
	Use:   "campaign",
	Short: "Create campaigns for a client",
}

var campaignFile string

// campaignCreateCmd reads the brief from a YAML file
var campaignCreateCmd = &cobra.Command{
	Use:   "create --file campaign.yaml",
	Short: "Create a campaign from a YAML brief",
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := readCampaign(campaignFile)
		if err != nil {
			return err
		}
		return withDB(cmd.Context(), func(db *sql.DB, _ config.Config, logger *zap.Logger) error {
			uc := usecase.NewOnboarding(database.NewClientRepository(db), database.NewCampaignRepository(db), logger, nil)
			out, err := uc.CreateCampaign(cmd.Context(), input)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		})
	},
}

// runOnceCmd runs one cycle and waits for campaign tasks
var runOnceCmd = &cobra.Command{
	Use:   "run-once",
	Short: "Run a single orchestrator cycle and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := load()
		if err != nil {
			return err
		}
		defer logger.Sync()

		a, err := app.New(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		report := a.Orchestrator.RunCycle(cmd.Context())
		a.Orchestrator.Wait()
		return printJSON(cmd, report)
	},
}

func init() {
	toolAddCmd.Flags().StringVar(&toolPlatform, "platform", string(entity.PlatformGoogleMaps), "google_maps | instagram | tiktok | facebook | linkedin")
	toolAddCmd.Flags().StringVar(&toolAudience, "audience", string(entity.AudienceBusiness), "business | person")
	toolAddCmd.Flags().StringVar(&toolActor, "actor", "", "Apify actor id (user~actor)")
	toolAddCmd.Flags().IntVar(&toolConfidence, "confidence", 50, "ranking among tools for the same platform/audience")
	toolCmd.AddCommand(toolAddCmd)

	clientCreateCmd.Flags().StringVar(&clientInput.Name, "name", "", "client name")
	clientCreateCmd.Flags().StringVar(&clientInput.Email, "email", "", "billing email")
	clientCreateCmd.Flags().Float64Var(&clientInput.Balance, "balance", 0, "initial balance")
	clientCreateCmd.Flags().Float64Var(&clientInput.PlanCost, "plan-cost", 0, "monthly plan cost")
	clientCreateCmd.Flags().StringVar(&clientInput.FirstPayment, "first-payment", "", "first due date (YYYY-MM-DD)")
	clientCmd.AddCommand(clientCreateCmd)

	campaignCreateCmd.Flags().StringVarP(&campaignFile, "file", "f", "", "campaign brief in YAML")
	campaignCreateCmd.MarkFlagRequired("file")
	campaignCmd.AddCommand(campaignCreateCmd)
}

func load() (config.Config, *zap.Logger, error) {
	path := configFile
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := config.NewLogger(cfg)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

// withDB abre só o Postgres; comandos administrativos não precisam da fila.
func withDB(ctx context.Context, fn func(db *sql.DB, cfg config.Config, logger *zap.Logger) error) error {
	cfg, logger, err := load()
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := database.NewDBConnection(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db, cfg, logger)
}

// campaignBrief é o formato do YAML aceito por "campaign create".
type campaignBrief struct {
	ClientID           string   `yaml:"client_id"`
	Name               string   `yaml:"name"`
	ProductDescription string   `yaml:"product_description"`
	TargetAudience     string   `yaml:"target_audience"`
	Geo                string   `yaml:"geo"`
	RedFlags           string   `yaml:"red_flags"`
	Tone               string   `yaml:"tone"`
	TicketPrice        float64  `yaml:"ticket_price"`
	Competitors        []string `yaml:"competitors"`
	DailyQuota         int      `yaml:"daily_prospects_quota"`
}

func readCampaign(path string) (usecase.CreateCampaignInput, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return usecase.CreateCampaignInput{}, fmt.Errorf("read campaign file: %w", err)
	}
	return parseCampaign(raw)
}

func parseCampaign(raw []byte) (usecase.CreateCampaignInput, error) {
	var b campaignBrief
	if err := yaml.Unmarshal(raw, &b); err != nil {
		return usecase.CreateCampaignInput{}, fmt.Errorf("parse campaign file: %w", err)
	}
	return usecase.CreateCampaignInput{
		ClientID:           b.ClientID,
		Name:               b.Name,
		ProductDescription: b.ProductDescription,
		TargetAudience:     b.TargetAudience,
		Geo:                b.Geo,
		RedFlags:           b.RedFlags,
		Tone:               b.Tone,
		TicketPrice:        b.TicketPrice,
		Competitors:        b.Competitors,
		DailyQuota:         b.DailyQuota,
	}, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
