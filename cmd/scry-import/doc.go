// Command scry-import converts a directory of worksheet images into exercises
// using the same queue, analyzer and exporters as the server.
package main
