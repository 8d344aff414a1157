package main

import (
	"encoding/json"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"

	"tink/domain"
)

func startDebugServer(db *badger.DB, port int) {
	database.StartDebugServer(db, port, "/inspect", sessionMapper)
}

// sessionMapper labels the rows of the raw key browser by key family.
func sessionMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)
	switch {
	case strings.HasPrefix(key, "session:"):
		row.Type = "SESSION"
		var s domain.Session
		if err := json.Unmarshal(val, &s); err == nil {
			row.Detail = s.Title + " (" + s.State.String() + ")"
		}
	case strings.HasPrefix(key, "msg:"):
		row.Type = "MESSAGE"
		var m struct {
			Sender string `json:"sender"`
			Text   string `json:"text"`
		}
		if err := json.Unmarshal(val, &m); err == nil {
			row.Detail = m.Sender + ": " + m.Text
		}
	case strings.HasPrefix(key, "summary:"):
		row.Type = "SUMMARY"
	}
	return row
}
