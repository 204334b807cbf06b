package commands

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/gridsnake/engine/rules"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "dumps the snakes of a room",
	Run: func(*cobra.Command, []string) {
		spew.Dump(getStatus(room))
	},
}

type roomStatus struct {
	Room   string             `json:"room"`
	Snakes []rules.SnakeState `json:"snakes"`
}

func getStatus(room string) *roomStatus {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get(fmt.Sprintf("%s/rooms/%s/snakes", apiAddr, url.PathEscape(room)))
	if err != nil {
		fmt.Println("error while getting room status", err)
		return nil
	}
	defer resp.Body.Close()

	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		fmt.Println("unable to read response body", err)
		return nil
	}

	rs := &roomStatus{}
	err = json.Unmarshal(data, rs)
	if err != nil {
		log.WithFields(log.Fields{
			"resp": string(data),
			"room": room,
		}).Infof("unable to unmarshal status response: %s", string(data))
		return nil
	}

	return rs
}
