/*
Package relaychat is a relay server: peers connect, register a handle with
HELLO, and exchange direct messages and room messages over a newline-delimited,
pipe-separated line protocol.

netd subdirectory contains the socket pieces (TCP, SSH, WebSocket) which know
nothing about chat.

chat subdirectory contains the registry and commands which know nothing about
sockets.

The Host type is the glue between the netd and chat pieces: it runs one
session per connection.
*/
package relaychat
