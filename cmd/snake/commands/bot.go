package commands

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/gridsnake/engine/worker"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	botCount = 1
)

func init() {
	botCmd.Flags().IntVarP(&botCount, "count", "n", botCount, "number of bots to run")
	botCmd.Flags().BoolVar(&freeFood, "free-food", freeFood, "never spawn food under a snake")
}

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "runs headless bots in a room until interrupted",
	Run: func(c *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt)
		go func() {
			<-sig
			log.Info("interrupted, stopping bots")
			cancel()
		}()

		var wg sync.WaitGroup
		for i := 0; i < botCount; i++ {
			l, err := connect(ctx, "")
			if err != nil {
				log.WithError(err).WithField("Room", room).Fatal("unable to join room")
			}
			defer l.close()

			seed := time.Now().UnixNano() + int64(i)
			s := newSession(newWorld(l.id, seed, freeFood), l)
			s.Steer = worker.NewBot(seed).Steer

			wg.Add(1)
			go func(s *worker.Session) {
				defer wg.Done()
				err := s.Run(ctx)
				if err != context.Canceled {
					log.WithError(err).WithField("SnakeID", s.World.LocalID()).Warn("bot stopped")
				}
			}(s)
			log.WithFields(log.Fields{"SnakeID": l.id, "Room": room}).Info("bot joined")
		}
		wg.Wait()
	},
}
