/*
Package resilience provides the circuit breaker that guards calls to the Portal.

# Overview

A Portal that is down or unreachable should fail fast instead of tying up
a request for the full timeout. The breaker counts consecutive failures and,
past a threshold, rejects calls with ErrCircuitOpen until a cooldown ends.

Only errors accepted by Settings.IsFailure are counted; a rejected password
or captcha passes through without touching the counts.

# Usage

	breaker := resilience.New("portal", resilience.Settings{
		FailureThreshold: 10,
		Cooldown:         30 * time.Second,
		IsFailure: func(err error) bool {
			var terr *portal.TransportError
			return errors.As(err, &terr)
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("circuit changed", zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	err := breaker.Do(func() error {
		return fetch(ctx)
	})

# States

	Closed --[threshold failures]-> Open --[cooldown]-> Half-Open --[trial ok]-> Closed
	                                                        |
	                                                 [trial failed]
	                                                        v
	                                                      Open
*/
package resilience
