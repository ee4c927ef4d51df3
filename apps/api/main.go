package main

import (
	_ "net/http/pprof" // register the /debug/pprof handlers
)

// TODO: rate-limit /tutor/ask per user once the Vertex AI quota is known.
func main() {
	startWithDig()
}
