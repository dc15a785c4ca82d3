package main

import (
	"github.com/jessevdk/go-flags"
	"github.com/spf13/afero"

	"go.flatdb.dev/core/booking"
	"go.flatdb.dev/core/db"
	"go.flatdb.dev/core/locks"
	mbp "go.flatdb.dev/core/mainboilerplate"
	"go.flatdb.dev/core/store"
)

const iniFilename = "flatdbctl.ini"

// baseConfig is the top-level configuration of flatdbctl, shared by all of
// its sub-commands.
type baseConfig struct {
	Log mbp.LogConfig `group:"Logging" namespace:"log" env-namespace:"LOG"`

	File string `long:"file" short:"f" env:"FILE" default:"contractors.db" description:"Path of the data file"`
}

var baseCfg = new(baseConfig)

func main() {
	var parser = flags.NewParser(baseCfg, flags.Default)

	parser.LongDescription = `flatdbctl is a tool for working with flatdb contractor data files.

See --help pages of each sub-command for documentation and usage examples.
Optionally configure flatdbctl with a '` + iniFilename + `' file in the current working directory,
or with '~/.config/flatdb/` + iniFilename + `'. Use the 'print-config' sub-command to inspect
the tool's current configuration.
`

	mustAddCmd(parser, "init", "Initialize a new data file", `
Create a new, empty data file at the configured path, holding the canonical
header and zero records.
`, &cmdInit{})
	mustAddCmd(parser, "seed", "Load records from a CSV file", `
Read records from a CSV file of six columns (name, location, specialties,
size, rate, owner) and create each in the data file.
`, &cmdSeed{})
	mustAddCmd(parser, "list", "List records of the data file", `
List live records in record-number order, optionally filtered by exact
name and/or location.
`, &cmdList{})
	mustAddCmd(parser, "stat", "Show data file statistics", `
Show the data file's size, slot geometry, and record counts.
`, &cmdStat{})
	mustAddCmd(parser, "book", "Book a record for a customer", `
Claim a record on behalf of a customer by writing their ID to its owner
field, under the record's lock. Fails if the record is already booked.
`, &cmdBook{})
	mustAddCmd(parser, "release", "Release a booked record", `
Clear a record's owner field, under the record's lock.
`, &cmdRelease{})
	mustAddCmd(parser, "delete", "Delete a record", `
Mark a record as deleted, under the record's lock. Its slot is reused by a
later create.
`, &cmdDelete{})

	mbp.AddPrintConfigCmd(parser, iniFilename)
	mbp.MustParseConfig(parser, iniFilename)
}

// startup initializes logging. Each sub-command Execute begins with it.
func startup() {
	mbp.InitLog(baseCfg.Log)
}

// openDB opens the configured data file and returns a facade over it.
func openDB() (*db.DB, error) {
	var files = store.NewStore(afero.NewOsFs())
	if err := files.Open(baseCfg.File); err != nil {
		return nil, err
	}
	return db.New(files, locks.NewTable()), nil
}

// openService returns a booking Service over the configured data file.
func openService() (*booking.Service, error) {
	var d, err = openDB()
	if err != nil {
		return nil, err
	}
	return booking.NewService(d), nil
}

func mustAddCmd(parser *flags.Parser, name, short, long string, cfg interface{}) {
	var _, err = parser.AddCommand(name, short, long, cfg)
	mbp.Must(err, "failed to add command", "name", name)
}
