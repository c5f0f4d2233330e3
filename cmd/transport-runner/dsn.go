package main

import (
	"fmt"
	"net/url"

	"github.com/riotkit-org/br-backup-controller/transport"
)

// parseTransportDSN decodes a transport DSN of the form
// "<name>://?key=value&key2=value2" into a registered name and its
// transport.Spec, mirroring orchestra.ParseDriverDSN/storage.GetFromDSN's
// scheme-plus-query-string convention.
func parseTransportDSN(dsn string) (string, transport.Spec, error) {
	uri, err := url.Parse(dsn)
	if err != nil {
		return "", nil, fmt.Errorf("parsing transport DSN %q: %w", dsn, err)
	}

	name := uri.Scheme
	if name == "" {
		return "", nil, fmt.Errorf("transport DSN %q is missing a scheme (e.g. docker-exec://?container=db)", dsn)
	}

	spec := transport.Spec{}

	for key, values := range uri.Query() {
		if len(values) > 0 {
			spec[key] = values[0]
		}
	}

	return name, spec, nil
}
