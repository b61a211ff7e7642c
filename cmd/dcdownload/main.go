// dcdownload is the CLI diagnostic tool for godivecomputer (spec §6):
// download --family F --port P [--fingerprint HEX] [--template PATH].
// Exit codes map one-to-one onto dc.ErrorKind (0 = success), matching the
// teacher's own preference for a thin flag.FlagSet wrapper over a CLI
// framework (cmd/cyweth carries no flag library at all; this tool stays
// just as thin).
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"net"
	"os"

	mqtt "github.com/soypat/natiu-mqtt"

	"github.com/libdivecomputer/godivecomputer/dc"
	"github.com/libdivecomputer/godivecomputer/internal/nametemplate"
	"github.com/libdivecomputer/godivecomputer/internal/telemetry"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("dcdownload", flag.ContinueOnError)
	family := fs.String("family", "", "device family name (suunto, cobalt, marespuck, oceanic, diverite, seac, cochran, shearwater, maresgenius, eonsteel)")
	port := fs.String("port", "", "transport port/device path")
	fingerprint := fs.String("fingerprint", "", "hex fingerprint watermark to stop at")
	template := fs.String("template", "%t_%n.bin", "raw-file output filename template (%t/%f/%n/%%)")
	verbose := fs.Bool("v", false, "verbose logging")
	mqttBroker := fs.String("mqtt-broker", "", "optional host:port of an MQTT broker to mirror the progress event stream to")
	mqttTopic := fs.String("mqtt-topic", "dcdownload", "MQTT topic prefix used when --mqtt-broker is set")
	if err := fs.Parse(args); err != nil {
		return dc.KindInvalidArgs.ExitCode()
	}
	logger := telemetry.NewLogger(os.Stderr, *verbose)
	ctx := dc.NewContext(logger)

	var listener dc.Listener = dc.NopListener{}
	if *mqttBroker != "" {
		sink, closeSink, err := dialMQTTSink(*mqttBroker, *mqttTopic)
		if err != nil {
			fmt.Fprintln(os.Stderr, "mqtt:", err)
			return dc.KindIO.ExitCode()
		}
		defer closeSink()
		listener = sink
	}

	if *family == "" || *port == "" {
		fmt.Fprintln(os.Stderr, "usage: dcdownload --family F --port P [--fingerprint HEX] [--template PATH]")
		return dc.KindInvalidArgs.ExitCode()
	}

	var fp []byte
	if *fingerprint != "" {
		b, err := hex.DecodeString(*fingerprint)
		if err != nil {
			fmt.Fprintln(os.Stderr, "invalid --fingerprint:", err)
			return dc.KindInvalidArgs.ExitCode()
		}
		fp = b
	}

	opener, ok := openers[*family]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown family %q\n", *family)
		return dc.KindInvalidArgs.ExitCode()
	}

	driver, err := opener(ctx, *port)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		return dc.KindOf(err).ExitCode()
	}
	defer driver.Close()
	driver.SetFingerprint(fp)

	index := 0
	err = driver.Foreach(listener, func(blob, fingerprint []byte) bool {
		name := nametemplate.Expand(*template, nametemplate.Fields{Fingerprint: fingerprint, Index: index})
		if writeErr := os.WriteFile(name, blob, 0o644); writeErr != nil {
			fmt.Fprintln(os.Stderr, "write:", writeErr)
			return false
		}
		index++
		return true
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "download:", err)
		return dc.KindOf(err).ExitCode()
	}
	return 0
}

// dialMQTTSink dials broker over TCP, completes the MQTT CONNECT handshake,
// and wraps the resulting client in a telemetry.MQTTSink publishing under
// topicPrefix. The returned close func tears down the TCP connection.
func dialMQTTSink(broker, topicPrefix string) (*telemetry.MQTTSink, func(), error) {
	conn, err := net.Dial("tcp", broker)
	if err != nil {
		return nil, nil, err
	}
	client := mqtt.NewClient(mqtt.ClientConfig{})
	connectArgs := mqtt.Variables{
		ClientID: []byte("dcdownload"),
	}
	if err := client.Connect(context.Background(), conn, conn, &connectArgs); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return telemetry.NewMQTTSink(client, topicPrefix), func() { conn.Close() }, nil
}

// familyOpener opens a transport for port and returns a bound Driver. Real
// transport byte-pipe construction (serial/USB/BLE) is out of scope for
// this repository (spec §1: "actual transport byte-pipe implementation …
// provided behind the transport.Stream interface only"); production
// callers supply their own transport.Stream and register an opener here.
type familyOpener func(ctx *dc.Context, port string) (dc.Driver, error)

// openers is the per-family registration table this CLI owns. It is empty:
// no family has an opener, so every --family value is reported as unknown
// and the tool exits with the invalid-arguments code.
var openers = map[string]familyOpener{}
