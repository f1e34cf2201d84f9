package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/logging"
	"github.com/deemkeen/fedcal/api"
	"github.com/deemkeen/fedcal/db"
	"github.com/deemkeen/fedcal/federation"
	"github.com/deemkeen/fedcal/middleware"
	"github.com/deemkeen/fedcal/ui/common"
	"github.com/deemkeen/fedcal/util"
	"github.com/deemkeen/fedcal/web"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the TUI over SSH and the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Configuration: ")
		fmt.Println(util.PrettyPrint(maskedConf()))

		// one client serves every viewer; tokens, not cookies, tell them apart
		client, err := newClient(api.WithoutCookies())
		if err != nil {
			return err
		}
		return serve(client)
	},
}

func maskedConf() util.AppConfig {
	c := *conf
	c.Conf.ApiToken = util.MaskToken(c.Conf.ApiToken)
	return c
}

func serve(client *api.Client) error {
	refresher := client.WithToken(conf.Conf.ApiToken)
	c := cron.New()
	_, err := c.AddFunc(conf.Conf.RefreshSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if federation.RefreshStale(ctx, refresher, conf.Conf.RefreshLimit, conf.Conf.RefreshMaxAgeHours) {
			log.Println("Remote actors refreshed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", conf.Conf.RefreshSchedule, err)
	}
	c.Start()
	defer c.Stop()

	var s *ssh.Server
	if conf.Conf.WithSsh {
		database := db.GetDB()
		defer database.Close()

		deps := common.Deps{
			Client:             client,
			Store:              database,
			Debounce:           conf.Debounce(),
			RefreshLimit:       conf.Conf.RefreshLimit,
			RefreshMaxAgeHours: conf.Conf.RefreshMaxAgeHours,
		}

		s, err = wish.NewServer(
			wish.WithAddress(fmt.Sprintf("%s:%d", conf.Conf.Host, conf.Conf.SshPort)),
			wish.WithHostKeyPath(util.ResolveFilePathWithSubdir(".ssh", "hostkey")),
			wish.WithPublicKeyAuth(publicKeyHandler),
			wish.WithMiddleware(
				middleware.MainTui(deps),
				middleware.AuthMiddleware(client, database),
				logging.Middleware(), // last middleware executed first
			),
		)
		if err != nil {
			return err
		}
	}

	startServing(s, client)
	return nil
}

func startServing(s *ssh.Server, client *api.Client) {
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	if s != nil {
		log.Printf("Starting SSH server on %s:%d", conf.Conf.Host, conf.Conf.SshPort)
		go func() {
			if err := s.ListenAndServe(); err != nil && err != ssh.ErrServerClosed {
				log.Fatalln(err)
			}
		}()
	}

	if conf.Conf.WithWeb {
		go func() {
			if err := web.Router(conf, client); err != nil {
				log.Fatalln(err)
			}
		}()
	}

	<-done
	if s == nil {
		return
	}
	log.Println("Stopping SSH server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer func() { cancel() }()
	if err := s.Shutdown(ctx); err != nil {
		log.Fatalln(err)
	}
}

// Every key is let in; unknown keys browse anonymously until they log in.
func publicKeyHandler(ssh.Context, ssh.PublicKey) bool {
	return true
}
