package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	awssession "github.com/aws/aws-sdk-go/aws/session"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/hirosato/petsgram/account"
	"github.com/hirosato/petsgram/db"
	"github.com/hirosato/petsgram/domain"
	"github.com/hirosato/petsgram/env"
	"github.com/hirosato/petsgram/feed"
	"github.com/hirosato/petsgram/file"
	"github.com/hirosato/petsgram/handler"
	"github.com/hirosato/petsgram/session"
	"github.com/spf13/cobra"
)

var ginLambda *ginadapter.GinLambda

func Handler(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return ginLambda.ProxyWithContext(ctx, req)
}

type store interface {
	domain.PostStore
	domain.UserStore
	domain.SessionStore
	Setup(ctx context.Context) error
}

// App owns every backend connection the server uses.
type App struct {
	cfg     env.Config
	store   store
	search  *db.Search
	closers []func() error

	Router *gin.Engine
}

func NewApp(cfg env.Config) (*App, error) {
	app := &App{cfg: cfg}
	var images domain.ImageRepository
	switch cfg.Store {
	case env.StoreDynamo:
		sess, err := awssession.NewSession(&aws.Config{Region: aws.String(cfg.Region)})
		if err != nil {
			return nil, fmt.Errorf("aws session: %w", err)
		}
		app.store = db.NewDynamo(sess, cfg)
		images = file.NewS3Repository(sess, cfg.BucketName)
	case env.StoreSqlite:
		sqlite, err := db.OpenSqlite(cfg.SqlitePath)
		if err != nil {
			return nil, err
		}
		app.store = sqlite
		app.closers = append(app.closers, sqlite.Close)
		if images, err = file.NewLocalRepository(cfg.ImageDir); err != nil {
			app.Close()
			return nil, err
		}
	}

	var search domain.SearchIndex
	if cfg.SearchEnabled() {
		var transport http.RoundTripper
		if !cfg.IsLocal {
			transport = db.NewAmazonESTransport(cfg.Region)
		}
		s, err := db.NewSearch(cfg.EsUrl, cfg.EsIndex, transport)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("elasticsearch: %w", err)
		}
		app.search = s
		search = s
	}

	posts, err := feed.NewService(app.store, images, search, feed.Options{
		PollInterval:   cfg.PollInterval,
		AnonymousLikes: cfg.AnonymousLikes,
		ImageCacheSize: cfg.ImageCacheSize,
	})
	if err != nil {
		app.Close()
		return nil, err
	}
	h := handler.New(
		posts,
		account.NewService(app.store),
		session.NewManager(app.store, cfg.SessionTTL, !cfg.IsLocal),
		cfg.FrontUrl,
	)
	app.Router = gin.Default()
	h.Routes(app.Router)
	return app, nil
}

// Setup creates the tables and the search index.
func (app *App) Setup(ctx context.Context) error {
	if err := app.store.Setup(ctx); err != nil {
		return fmt.Errorf("setup store: %w", err)
	}
	if app.search != nil {
		if err := app.search.Setup(ctx); err != nil {
			return fmt.Errorf("setup search: %w", err)
		}
	}
	return nil
}

func (app *App) Close() error {
	var errs []error
	for _, c := range app.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

func (app *App) serve() error {
	if app.cfg.IsLocal {
		log.Printf("listening on %s", app.cfg.Addr)
		return http.ListenAndServe(app.cfg.Addr, app.Router)
	}
	ginLambda = ginadapter.New(app.Router)
	lambda.Start(Handler)
	return nil
}

func newRootCmd() *cobra.Command {
	var configPath, addr string

	load := func() (env.Config, error) {
		cfg, err := env.Load(configPath)
		if err != nil {
			return cfg, err
		}
		if addr != "" {
			cfg.Addr = addr
		}
		return cfg, nil
	}

	root := &cobra.Command{
		Use:           "petsgram",
		Short:         "Pet photo feed API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Printf("Gin cold start")
			cfg, err := load()
			if err != nil {
				return err
			}
			app, err := NewApp(cfg)
			if err != nil {
				return err
			}
			defer app.Close()
			if cfg.IsLocal && cfg.Store == env.StoreSqlite {
				if err := app.Setup(cmd.Context()); err != nil {
					return err
				}
			}
			return app.serve()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&addr, "addr", "", "listen address (overrides ADDR/PORT)")

	root.AddCommand(&cobra.Command{
		Use:   "setup",
		Short: "Create tables and the search index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			app, err := NewApp(cfg)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.Setup(cmd.Context())
		},
	})
	return root
}

func main() {
	fmt.Println("IS_LOCAL", os.Getenv("IS_LOCAL"))
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		log.Printf("petsgram: %v", err)
		os.Exit(1)
	}
}
