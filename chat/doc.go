/*
Package chat is a transport-agnostic implementation of a line-based relay: a
registry of handles and rooms shared by every connection, and the commands
that act on it.

This package does not know anything about sockets. Connections are exposed as
the Conn interface, lines arrive as strings, and replies leave as
message.Message values.

A line is a command followed by arguments, separated by "|":

	HELLO|alice
	JOIN|general
	ROOMMSG|general|hello everyone
	MSG|bob|hi
*/
package chat
