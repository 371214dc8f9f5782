// Package cli implements the callbackd command line interface.
//
// Commands:
//
//	listen          run the subscription bridge daemon
//	export-schema   write the federation subgraph SDL to a file
//	publish-schema  upload the SDL to the graph registry
//	version         print build information
package cli
