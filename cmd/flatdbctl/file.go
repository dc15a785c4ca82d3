package main

import (
	"encoding/csv"
	"fmt"
	"os"

	humanize "github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	mbp "go.flatdb.dev/core/mainboilerplate"
	"go.flatdb.dev/core/schema"
	"go.flatdb.dev/core/store"
)

type cmdInit struct{}

func (cmd *cmdInit) Execute([]string) error {
	startup()

	if err := store.Initialize(afero.NewOsFs(), baseCfg.File); err != nil {
		return err
	}
	log.WithField("path", baseCfg.File).Info("initialized data file")
	return nil
}

type cmdSeed struct {
	Input string `long:"input" short:"i" required:"true" description:"Path of the CSV file to load"`
}

func (cmd *cmdSeed) Execute([]string) error {
	startup()

	var f, err = os.Open(cmd.Input)
	mbp.Must(err, "failed to open input", "path", cmd.Input)
	defer f.Close()

	var d, openErr = openDB()
	mbp.Must(openErr, "failed to open data file", "path", baseCfg.File)

	var r = csv.NewReader(f)
	r.FieldsPerRecord = schema.NumFields

	var rows, readErr = r.ReadAll()
	mbp.Must(readErr, "failed to read input", "path", cmd.Input)

	for i, row := range rows {
		var rec, err = schema.RecordFromFields(row)
		if err != nil {
			return errors.WithMessagef(err, "row %d", i)
		}
		var recNo, createErr = d.Create(rec)
		if createErr != nil {
			return errors.WithMessagef(createErr, "creating record of row %d", i)
		}
		log.WithFields(log.Fields{"recNo": recNo, "name": rec.Name}).Debug("created record")
	}

	log.WithFields(log.Fields{"records": len(rows), "path": baseCfg.File}).Info("seeded data file")
	return nil
}

type cmdStat struct{}

func (cmd *cmdStat) Execute([]string) error {
	startup()

	var fs = afero.NewOsFs()
	var info, err = fs.Stat(baseCfg.File)
	mbp.Must(err, "failed to stat data file", "path", baseCfg.File)

	var files = store.NewStore(fs)
	mbp.Must(files.Open(baseCfg.File), "failed to open data file", "path", baseCfg.File)

	var slots, readErr = files.ReadAll()
	mbp.Must(readErr, "failed to read records")

	var live, deleted, booked int
	for _, slot := range slots {
		if slot.State.IsDeleted() {
			deleted++
			continue
		}
		live++
		if slot.Record.IsBooked() {
			booked++
		}
	}

	fmt.Printf("Path:          %s\n", baseCfg.File)
	fmt.Printf("Size:          %s (%d bytes)\n", humanize.IBytes(uint64(info.Size())), info.Size())
	fmt.Printf("Slot size:     %d bytes (+%d byte header)\n", schema.RecordLength, schema.HeaderLength)
	fmt.Printf("Slots:         %d\n", len(slots))
	fmt.Printf("Live records:  %d (%d booked)\n", live, booked)
	fmt.Printf("Deleted slots: %d\n", deleted)

	return files.Close()
}
