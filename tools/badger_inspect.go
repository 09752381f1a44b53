package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"media-vault/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

// Operator tool: dumps attachment records and queue entries straight from the
// BadgerDB files, without the pipeline running. Opens read-only with the lock
// guard bypassed so it works against a live database.

type toolConfig struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" default:"/tmp/media-vault"`
	Colours        bool   `envconfig:"INSPECT_COLOURS" default:"true"`
}

func main() {
	var cfg toolConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatal("Config error: ", err)
	}

	dbPath := flag.String("db", cfg.BadgerFilepath, "Path to badger DB")
	// Default scans records; pass -prefix job: for the queue view.
	prefix := flag.String("prefix", "att:id:", "Prefix to scan")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "State", "Owner", "File", "Detected", "Size", "Reason"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())

			// Secondary indexes hold no payload worth printing.
			if strings.HasPrefix(key, "att:state:") || strings.HasPrefix(key, "att:upload:") {
				continue
			}

			err := item.Value(func(v []byte) error {
				if strings.HasPrefix(key, "job:") {
					var job domain.Job
					if err := json.Unmarshal(v, &job); err != nil {
						fmt.Printf("Error unmarshaling key %s: %v\n", key, err)
						return nil
					}
					table.Append([]string{
						shortID(job.ID.String()),
						"QUEUED",
						"-",
						"-",
						"-",
						fmt.Sprintf("attempt %d", job.AttemptCount),
						key,
					})
					return nil
				}

				var att domain.Attachment
				if err := json.Unmarshal(v, &att); err != nil {
					fmt.Printf("Error unmarshaling key %s: %v\n", key, err)
					return nil
				}

				table.Append([]string{
					shortID(att.ID.String()),
					renderState(att.State, cfg.Colours),
					att.OwnerID,
					att.FileName,
					string(att.DetectedMime),
					fmt.Sprintf("%d", att.SizeBytes),
					att.FailureReason,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func renderState(state domain.State, colours bool) string {
	if !colours {
		return string(state)
	}
	switch state {
	case domain.StateReady:
		return color.New(color.FgGreen).Render(string(state))
	case domain.StateFailed:
		return color.New(color.FgRed).Render(string(state))
	case domain.StateProcessing:
		return color.New(color.FgYellow).Render(string(state))
	case domain.StateDeleted:
		return color.New(color.FgGray).Render(string(state))
	default:
		return string(state)
	}
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)

	return badger.Open(opts)
}
