package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/opsworks-ru/go-es-facade/internal/config"
	"github.com/opsworks-ru/go-es-facade/internal/kafka"
)

// feed reads one JSON document per line from stdin and publishes each to the
// ingest topic.
func main() {
	index := flag.String("index", "", "target index (consumer's default index when empty)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	pub := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer pub.Close()

	ctx := context.Background()
	sc := bufio.NewScanner(os.Stdin)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	n := 0
	lines := 0
	for sc.Scan() {
		lines++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}

		var doc map[string]any
		if err := json.Unmarshal(line, &doc); err != nil {
			log.Printf("skip line %d: %v", lines, err)
			continue
		}

		payload, err := json.Marshal(kafka.Envelope{Index: *index, Doc: doc})
		if err != nil {
			log.Printf("marshal envelope: %v", err)
			continue
		}

		if err := pub.Publish(ctx, []byte(uuid.NewString()), payload); err != nil {
			log.Fatalf("publish: %v", err)
		}
		n++
	}
	if err := sc.Err(); err != nil {
		log.Fatalf("read stdin: %v", err)
	}
	log.Printf("published %d documents", n)
}
