package main

import (
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"

	mbp "go.flatdb.dev/core/mainboilerplate"
)

type cmdList struct {
	Name     string `long:"name" description:"List only records with exactly this name"`
	Location string `long:"location" description:"List only records with exactly this location"`
}

func (cmd *cmdList) Execute([]string) error {
	startup()

	var svc, err = openService()
	mbp.Must(err, "failed to open data file", "path", baseCfg.File)

	var contractors, searchErr = svc.Search(cmd.Name, cmd.Location)
	mbp.Must(searchErr, "failed to search records")

	var table = tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Rec", "Name", "Location", "Specialties", "Size", "Rate", "Owner"})

	for _, c := range contractors {
		table.Append([]string{
			strconv.Itoa(c.RecNo),
			c.Name,
			c.Location,
			c.Specialties,
			c.Size,
			c.Rate,
			c.Owner,
		})
	}
	table.Render()
	return nil
}

type cmdBook struct {
	Rec   int    `long:"rec" short:"r" required:"true" description:"Record number to book"`
	Owner string `long:"owner" short:"o" required:"true" description:"Customer ID to book the record for"`
}

func (cmd *cmdBook) Execute([]string) error {
	startup()

	var svc, err = openService()
	mbp.Must(err, "failed to open data file", "path", baseCfg.File)

	return svc.Book(cmd.Rec, cmd.Owner)
}

type cmdRelease struct {
	Rec int `long:"rec" short:"r" required:"true" description:"Record number to release"`
}

func (cmd *cmdRelease) Execute([]string) error {
	startup()

	var svc, err = openService()
	mbp.Must(err, "failed to open data file", "path", baseCfg.File)

	return svc.Release(cmd.Rec)
}

type cmdDelete struct {
	Rec int `long:"rec" short:"r" required:"true" description:"Record number to delete"`
}

func (cmd *cmdDelete) Execute([]string) error {
	startup()

	var d, err = openDB()
	mbp.Must(err, "failed to open data file", "path", baseCfg.File)

	cookie, err := d.Lock(cmd.Rec)
	if err != nil {
		return err
	}
	if err = d.Delete(cmd.Rec, cookie); err != nil {
		// The slot is gone but the lock is still ours to return.
		if unlockErr := d.Unlock(cmd.Rec, cookie); unlockErr != nil {
			log.WithFields(log.Fields{"err": unlockErr, "recNo": cmd.Rec}).
				Error("failed to unlock record")
		}
		return err
	}
	return d.Unlock(cmd.Rec, cookie)
}
