// Package relay carries the result of the calendar authorization from the
// secondary window back to the chat.
//
// The provider redirects the browser to a loopback page served by Server.
// CallbackHandler turns the redirect's query into a Message and posts it to
// Bus, stamped with the page's own origin. The calendar link handshake is the
// single subscriber and only accepts messages whose origin matches its own.
//
//	bus := relay.NewBus(logger)
//	codes := dedupe.New(10*time.Minute, 1000)
//	h := relay.NewCallbackHandler(bus, "http://127.0.0.1:8765", codes, logger)
//	srv := relay.NewServer("127.0.0.1:8765", "/callback", h, logger)
//	if err := srv.Start(); err != nil {
//	    return err
//	}
//	defer srv.Shutdown(ctx)
package relay
