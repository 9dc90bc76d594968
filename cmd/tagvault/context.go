package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/cognicore/tagvault/internal/llm"
	"github.com/cognicore/tagvault/internal/logger"
	"github.com/cognicore/tagvault/pkg/tagvault/classify"
	"github.com/cognicore/tagvault/pkg/tagvault/config"
	"github.com/cognicore/tagvault/pkg/tagvault/ingest"
	"github.com/cognicore/tagvault/pkg/tagvault/store"
	"github.com/cognicore/tagvault/pkg/tagvault/store/memstore"
	"github.com/cognicore/tagvault/pkg/tagvault/store/postgres"
	"github.com/cognicore/tagvault/pkg/tagvault/store/sqlite"
	"github.com/cognicore/tagvault/pkg/tagvault/taxonomy"
)

type commandContext struct {
	configFlag *string
	dbFlag     *string
	storeFlag  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	logOnce sync.Once
	log     *logger.Logger
}

func newCommandContext(configFlag, dbFlag, storeFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		dbFlag:     dbFlag,
		storeFlag:  storeFlag,
	}
}

func flagValue(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load(flagValue(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		cfg.ApplyEnv(os.Getenv)

		if driver := flagValue(c.storeFlag); driver != "" {
			cfg.Store.Driver = driver
		}
		if db := flagValue(c.dbFlag); db != "" {
			if cfg.Store.Driver == config.DriverPostgres {
				cfg.Store.DSN = db
			} else {
				cfg.Store.Path = db
			}
		}

		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		c.config = &cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() *logger.Logger {
	c.logOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.log = logger.Nop()
			return
		}
		log, err := logger.New(cfg.Logging.Mode, cfg.Logging.Level)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logger: %v\n", err)
			log = logger.Nop()
		}
		c.log = log
	})
	return c.log
}

func (c *commandContext) close() {
	if c.log != nil {
		c.log.Sync()
	}
}

func (c *commandContext) openStore(ctx context.Context) (store.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.Store.DSN)
	case config.DriverMemory:
		return memstore.New(), nil
	default:
		return sqlite.Open(ctx, cfg.Store.Path)
	}
}

func (c *commandContext) normalizer() (*taxonomy.Normalizer, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return cfg.Normalizer()
}

// newClassifier builds the classifier. Without an API key it has no generator
// and every batch takes the fallback path.
func (c *commandContext) newClassifier() (*classify.Classifier, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	norm, err := cfg.Normalizer()
	if err != nil {
		return nil, err
	}
	enc, err := classify.ParseEncoding(cfg.Classifier.Encoding)
	if err != nil {
		return nil, err
	}
	log := c.logger()

	var gen classify.Generator
	if cfg.Classifier.Enabled() {
		client, err := llm.New(llm.Config{
			BaseURL:  cfg.Classifier.BaseURL,
			APIKey:   cfg.Classifier.APIKey,
			Model:    cfg.Classifier.Model,
			JSONMode: cfg.Classifier.JSONMode,
		})
		if err != nil {
			return nil, err
		}
		gen = client
		log.Info("classifier enabled", "model", cfg.Classifier.Model, "encoding", string(enc))
	} else {
		log.Warn("no classifier api key configured, new tags will use the fallback category",
			"category", taxonomy.Fallback)
	}

	return classify.New(gen, norm, classify.Options{
		Encoding: enc,
		Timeout:  cfg.Classifier.Timeout,
		Logger:   log.With("component", "classifier"),
	}), nil
}

// newService opens the store and wires the ingestion service. Callers close
// the returned store.
func (c *commandContext) newService(ctx context.Context) (*ingest.Service, store.Store, error) {
	st, err := c.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	cl, err := c.newClassifier()
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	norm, err := c.normalizer()
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	svc := ingest.New(st, cl,
		ingest.WithNormalizer(norm),
		ingest.WithLogger(c.logger().With("component", "ingest")),
	)
	return svc, st, nil
}
