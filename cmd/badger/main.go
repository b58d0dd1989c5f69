package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/namsral/flag"
	"github.com/scraperwall/fgblock"
	"github.com/scraperwall/fgblock/data"
	"github.com/scraperwall/fgblock/registry"
	log "github.com/sirupsen/logrus"
)

func main() {
	dbdir := flag.String("dir", "", "badger db dir")
	prefix := flag.String("prefix", "", "return all cached addresses with this prefix")
	count := flag.Bool("count", false, "only print the number of cached addresses")

	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := fgblock.NewBadgerDB(ctx, *dbdir)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if *count {
		n, err := db.Count([]byte(registry.Namespace), []byte(*prefix))
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(n)
		return
	}

	err = db.Each([]byte(registry.Namespace), []byte(*prefix), func(key, value []byte) {
		var reg data.Registry
		if err := json.Unmarshal(value, &reg); err != nil {
			fmt.Printf("%s\t<invalid: %s>\n", key, err)
			return
		}
		fmt.Printf("%s\t%s\n", key, reg.Comment())
	})
	if err != nil {
		log.Fatal(err)
	}
}
