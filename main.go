package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jinzhu/gorm"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/webvolta/zammad/actions"
	"github.com/webvolta/zammad/calendar"
	"github.com/webvolta/zammad/condition"
	"github.com/webvolta/zammad/configuration"
	"github.com/webvolta/zammad/dispatcher"
	"github.com/webvolta/zammad/log"
	"github.com/webvolta/zammad/notification"
	"github.com/webvolta/zammad/scheduler"
	"github.com/webvolta/zammad/securemailing"
	"github.com/webvolta/zammad/trigger"
	"github.com/webvolta/zammad/user"
)

var (
	// Commit current build commit set by build script
	Commit = "0"
	// BuildTime set by build script
	BuildTime = "0"
)

// logMailer hands outbound messages to the log. The real delivery
// collaborator (an SMTP channel) lives in the surrounding application and
// replaces this in production wiring.
type logMailer struct{}

func (m logMailer) Send(ctx context.Context, msg notification.Message) error {
	log.Info(ctx, map[string]interface{}{
		"to":        msg.To,
		"subject":   msg.Subject,
		"dedup_key": msg.DedupKey,
	}, "outbound notification handed off")
	return nil
}

func main() {
	var configFile string
	var metricsAddr string
	flag.StringVar(&configFile, "config", "", "Path to the config file to read")
	flag.StringVar(&metricsAddr, "metricsAddr", "", "Address to serve prometheus metrics on, e.g. :8889")
	flag.Parse()

	if err := configuration.Setup(configFile); err != nil {
		log.Panic(nil, map[string]interface{}{"config_file": configFile, "err": err}, "failed to setup the configuration")
	}
	log.InitializeLogger(configuration.IsPostgresDeveloperModeEnabled())

	db, err := gorm.Open("postgres", configuration.PostgresConfigString())
	if err != nil {
		log.Panic(nil, map[string]interface{}{"err": err}, "failed to connect to the database")
	}
	defer db.Close()

	if err := db.AutoMigrate(&trigger.Trigger{}).Error; err != nil {
		log.Panic(nil, map[string]interface{}{"err": err}, "failed to migrate the triggers table")
	}

	security := securemailing.NewRegistry()
	for _, backend := range configuration.SecureMailingBackends() {
		switch securemailing.Method(backend) {
		case securemailing.MethodSMIME:
			err = security.Register(securemailing.SMIMEBackend{Certificates: securemailing.NewInMemoryCertificateStore()})
		default:
			log.Warn(nil, map[string]interface{}{"backend": backend}, "unknown secure mailing backend, skipping")
			continue
		}
		if err != nil {
			log.Panic(nil, map[string]interface{}{"backend": backend, "err": err}, "failed to register security backend")
		}
	}

	users := user.NewInMemoryRegistry()
	calendars := calendar.NewInMemoryStore()
	rules := trigger.NewRepository(db)

	executor := actions.Executor{
		Users:           users,
		Mailer:          logMailer{},
		Security:        security,
		SecurityMethod:  securemailing.MethodSMIME,
		SenderAddress:   configuration.NotificationSenderAddress(),
		SystemAddresses: []string{configuration.NotificationSenderAddress()},
	}
	engine := dispatcher.New(rules, condition.Evaluator{Calendars: calendars}, executor)

	sweeper := scheduler.NewPendingSweeper(scheduler.NewInMemoryTicketSource(), engine, &user.User{Login: "-", Email: configuration.NotificationSenderAddress()})
	if err := sweeper.Start(configuration.PendingSweepSchedule()); err != nil {
		log.Panic(nil, map[string]interface{}{"err": err}, "failed to start the pending sweeper")
	}
	defer sweeper.Stop()

	if metricsAddr != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(metricsAddr, nil); err != nil {
				log.Error(nil, map[string]interface{}{"addr": metricsAddr, "err": err}, "metrics endpoint failed")
			}
		}()
	}

	log.Info(nil, map[string]interface{}{
		"commit":     Commit,
		"build_time": BuildTime,
	}, "trigger engine is up")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info(nil, nil, "shutting down")
}
