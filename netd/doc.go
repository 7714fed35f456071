/*
Package netd accepts stream connections over TCP, SSH and WebSocket and hands
each one to a Handler as a Connection. It knows nothing about chat.

	listener, err := netd.ListenTCP("0.0.0.0:8080")
	if err != nil {
		// ...
	}
	defer listener.Close()

	go listener.Serve(func(conn netd.Connection) {
		defer conn.Close()
		// read and write conn
	})
*/
package netd
