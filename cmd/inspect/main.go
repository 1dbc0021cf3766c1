// Command inspect prints the in-flight MQTT packets kept in a session
// directory written by chat --session-dir.
package main

import (
	"flag"
	"fmt"
	"io"
	"mqtt-chat/domain"
	"mqtt-chat/storage"
	"os"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dir := flag.String("db", "", "session directory")
	user := flag.String("u", "", "only show packets of this username")
	flag.Parse()

	if err := run(os.Stdout, *dir, *user); err != nil {
		fmt.Fprintf(os.Stderr, "Inspect error: %v\n", err)
		os.Exit(1)
	}
}

func run(out io.Writer, dir, user string) error {
	if dir == "" {
		return fmt.Errorf("missing -db")
	}
	db, err := badger.Open(badger.DefaultOptions(dir).
		WithReadOnly(true).
		WithLogger(nil))
	if err != nil {
		return fmt.Errorf("opening %s: %w", dir, err)
	}
	defer db.Close()

	clientID := ""
	if user != "" {
		clientID = domain.SessionConfig{Identity: user}.ClientIdentifier()
	}
	entries, err := storage.Inspect(db, clientID)
	if err != nil {
		return err
	}
	render(out, entries)
	return nil
}

func render(out io.Writer, entries []storage.Entry) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Client", "Key", "Direction", "Kind", "QoS", "Message ID", "Topic", "Payload"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, e := range entries {
		kind := e.Kind
		if e.Err != nil {
			kind = "undecodable: " + e.Err.Error()
		}
		table.Append([]string{
			e.ClientID,
			e.Key,
			e.Direction,
			kind,
			strconv.Itoa(int(e.QoS)),
			strconv.Itoa(int(e.MessageID)),
			e.Topic,
			e.Payload,
		})
	}
	table.Render()
}
