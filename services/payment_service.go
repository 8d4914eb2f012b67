package services

import (
	"context"
	"strings"
)

// PaymentGateway charges an opaque payment token
type PaymentGateway interface {
	Charge(ctx context.Context, token string) (bool, error)
}

// SimulatedGateway approves exactly one sentinel token. It stands in for a
// real processor until one is integrated.
type SimulatedGateway struct {
	successToken string
}

// NewSimulatedGateway returns a gateway that approves successToken
func NewSimulatedGateway(successToken string) *SimulatedGateway {
	return &SimulatedGateway{successToken: successToken}
}

// Charge reports whether the token is approved
func (g *SimulatedGateway) Charge(ctx context.Context, token string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return g.successToken != "" && strings.TrimSpace(token) == g.successToken, nil
}
