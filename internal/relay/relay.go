// Package relay embeds the TURN server every match is forced through. Both a
// UDP and a TCP listener are offered because client networks may block
// either protocol.
package relay

import (
	"fmt"
	"log/slog"
	"net"
	"regexp"

	"github.com/pion/turn/v3"

	"github.com/ayase/duelgrid/internal/metrics"
)

// Config describes one relay deployment.
type Config struct {
	// PublicIP is the address TURN clients are told to reach relayed
	// traffic on.
	PublicIP string

	// Port is the listening port for both UDP and TCP.
	Port string

	// Realm is the TURN authentication realm.
	Realm string

	// Users is a "user=pass,user=pass" list.
	Users string
}

var userPattern = regexp.MustCompile(`(\w+)=(\w+)`)

// Start brings up the TURN server described by cfg.
func Start(cfg *Config) (*turn.Server, error) {
	udpListener, err := net.ListenPacket("udp4", net.JoinHostPort("0.0.0.0", cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("listen udp: %w", err)
	}

	tcpListener, err := net.Listen("tcp4", net.JoinHostPort("0.0.0.0", cfg.Port))
	if err != nil {
		udpListener.Close()
		return nil, fmt.Errorf("listen tcp: %w", err)
	}

	// Auth keys are derived once up front for lookup in the handler.
	users := map[string][]byte{}
	for _, kv := range userPattern.FindAllStringSubmatch(cfg.Users, -1) {
		users[kv[1]] = turn.GenerateAuthKey(kv[1], cfg.Realm, kv[2])
	}

	relayGen := &turn.RelayAddressGeneratorStatic{
		RelayAddress: net.ParseIP(cfg.PublicIP),
		Address:      "0.0.0.0",
	}

	authHandler := func(username, realm string, srcAddr net.Addr) ([]byte, bool) {
		if key, ok := users[username]; ok {
			metrics.RelayAuthSuccesses.Inc()
			return key, true
		}
		metrics.RelayAuthFailures.Inc()
		slog.Warn("Rejected TURN auth", "username", username, "src", srcAddr.String())
		return nil, false
	}

	s, err := turn.NewServer(turn.ServerConfig{
		Realm:       cfg.Realm,
		AuthHandler: authHandler,
		PacketConnConfigs: []turn.PacketConnConfig{
			{
				PacketConn:            &stunLogger{udpListener},
				RelayAddressGenerator: relayGen,
			},
		},
		ListenerConfigs: []turn.ListenerConfig{
			{
				Listener:              tcpListener,
				RelayAddressGenerator: relayGen,
			},
		},
	})
	if err != nil {
		udpListener.Close()
		tcpListener.Close()
		return nil, fmt.Errorf("start turn server: %w", err)
	}

	slog.Info("TURN relay listening", "port", cfg.Port, "realm", cfg.Realm, "publicIP", cfg.PublicIP)
	return s, nil
}
