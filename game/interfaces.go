package game

import "time"

type NetworkSession interface {
	Close(errCode string)
	Write(data []byte) error
	Read() ([]byte, error)
	Ping() error
}

type PeriodicTickerChannelCreator interface {
	Create(duration time.Duration) <-chan time.Time
}

// TokenVerifier returns the wallet address a session token was minted for.
type TokenVerifier interface {
	Verify(token string) (string, error)
}
