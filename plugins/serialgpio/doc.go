// Package serialgpio provides digital I/O over a serial line protocol,
// targeting microcontroller firmware that drives the physical pins on
// behalf of the daemon (an Arduino or ESP32 wired as a GPIO expander).
//
// # Protocol
//
// Commands are single lines terminated by LF. The adapter answers every
// command with exactly one line; line state changes arrive unsolicited.
//
//	MODE <addr> OUT              claim a pin as an output
//	MODE <addr> IN <pull>        claim a pin as an input, pull is
//	                             PULLUP, PULLDOWN or NONE
//	SET <addr> <0|1>             drive an output pin
//	GET <addr>                   sample a pin
//
// Responses:
//
//	OK                           command accepted
//	ERR <message>                command rejected
//	STATE <addr> <0|1>           answer to GET
//
// Unsolicited:
//
//	EVENT <addr> <0|1>           input pin changed level
//
// Commands are serialized: one command is in flight at a time, and the
// next line that is not an EVENT is taken as its response.
//
// # Usage
//
//	client, err := serialgpio.Open(cfg.Serial)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	rt, err := pi4j.New(ctx,
//		pi4j.WithConfig(cfg),
//		pi4j.WithPlugins(serialgpio.NewPlugin(client)),
//	)
//
// Event handlers run on the read goroutine and must not block.
package serialgpio
