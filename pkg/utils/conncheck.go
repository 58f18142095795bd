package utils

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mpapenbr/hyperdrive-race/log"
)

const defaultNatsPort = "4222"

// WaitForTCP polls addr until a connection succeeds, the timeout is reached
// or ctx is done.
func WaitForTCP(ctx context.Context, addr string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()
	log.Debug("wait for tcp connection",
		log.String("addr", addr),
		log.Duration("timeout", timeout))
	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			conn.Close()
			log.Debug("tcp connection successful",
				log.String("addr", addr),
				log.Duration("duration", time.Since(start)))
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s could not be reached after %v", addr, timeout)
		case <-time.After(200 * time.Millisecond):
		}
	}
}

// WaitForServices waits for all addresses in parallel.
func WaitForServices(ctx context.Context, addrs []string, timeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, addr := range addrs {
		g.Go(func() error {
			return WaitForTCP(gctx, addr, timeout)
		})
	}
	return g.Wait()
}

var natsURLRegex = regexp.MustCompile(
	"^((?P<proto>nats|tls|ws|wss)://)?(.*@)?(?P<host>[^:/@]+)(:(?P<port>\\d+))?/?$")

// ExtractFromNatsURL returns host:port of the first server in a NATS url
// list. An empty string is returned if the url cannot be parsed.
func ExtractFromNatsURL(url string) string {
	first := strings.TrimSpace(strings.Split(url, ",")[0])
	param := resolveRegex(natsURLRegex, first)
	if len(param) == 0 || param["host"] == "" {
		return ""
	}
	if port := param["port"]; port != "" {
		return net.JoinHostPort(param["host"], port)
	}
	return net.JoinHostPort(param["host"], defaultNatsPort)
}

func resolveRegex(re *regexp.Regexp, url string) map[string]string {
	match := re.FindStringSubmatch(url)
	paramsMap := make(map[string]string)
	if match == nil {
		return paramsMap
	}
	for i, name := range re.SubexpNames() {
		if i > 0 && name != "" {
			paramsMap[name] = match[i]
		}
	}
	return paramsMap
}
