package commands

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"time"

	"github.com/gridsnake/engine/worker"
	termbox "github.com/nsf/termbox-go"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	playerID = ""
	offline  = false
	freeFood = false
	logFile  = ""
)

func init() {
	playCmd.Flags().StringVar(&playerID, "id", playerID, "snake id to ask for, a fresh one if empty")
	playCmd.Flags().BoolVar(&offline, "offline", offline, "play alone without connecting")
	playCmd.Flags().BoolVar(&freeFood, "free-food", freeFood, "never spawn food under a snake")
	playCmd.Flags().StringVar(&logFile, "log-file", logFile, "write logs here instead of discarding them")
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "play in the terminal",
	Run: func(c *cobra.Command, args []string) {
		// The terminal belongs to the board.
		if logFile == "" {
			log.SetOutput(ioutil.Discard)
		} else {
			f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				fmt.Println("unable to open log file", err)
				os.Exit(1)
			}
			defer f.Close()
			log.SetOutput(f)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		id := playerID
		var l *link
		if !offline {
			var err error
			l, err = connect(ctx, playerID)
			if err != nil {
				fmt.Println("unable to join room", room, err)
				os.Exit(1)
			}
			defer l.close()
			id = l.id
		} else if id == "" {
			id = "local"
		}

		if err := termbox.Init(); err != nil {
			fmt.Println("unable to start terminal", err)
			os.Exit(1)
		}
		s := newSession(newWorld(id, time.Now().UnixNano(), freeFood), l)
		s.Renderer = newTerminal()
		go input(s, cancel)

		err := s.Run(ctx)
		termbox.Close()
		if err != nil && err != context.Canceled {
			fmt.Println("game ended:", err)
		}
	},
}

func input(s *worker.Session, quit func()) {
	for {
		ev := termbox.PollEvent()
		switch ev.Type {
		case termbox.EventKey:
			if ev.Key == termbox.KeyEsc || ev.Key == termbox.KeyCtrlC || ev.Ch == 'q' {
				quit()
				return
			}
			if code, ok := keyCode(ev.Key); ok {
				s.Key(code)
			}
		case termbox.EventError:
			quit()
			return
		}
	}
}
