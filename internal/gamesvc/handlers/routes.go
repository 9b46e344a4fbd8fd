package handlers

import (
	"context"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"

	"github.com/avvvet/mastermind-services/internal/comm"
	"github.com/avvvet/mastermind-services/internal/mastermind"
)

func (h *Handler) SetRoutes(r chi.Router) {
	g := h.games
	r.Route("/v1", func(r chi.Router) {

		// public routes here
		r.Get("/health", h.HealthHandler)
		r.Get("/games/open", h.OpenGames)
		r.Get("/games/{id}", h.GetGame)
		r.Get("/games/{id}/events", h.GameEvents)

		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)

			r.Get("/me/game", h.ActiveGame)
			r.Get("/me/games", h.History)
			r.Get("/me/balance", h.Balance)

			r.Post("/games", h.CreateGame)
			r.Post("/games/join", h.JoinOpenGame)
			r.Post("/games/{id}/join", h.game(func(ctx context.Context, p string, id uint64, _ comm.Command) (mastermind.Snapshot, error) {
				return g.JoinGame(ctx, p, id)
			}))
			r.Post("/games/{id}/quit", h.game(func(ctx context.Context, p string, id uint64, _ comm.Command) (mastermind.Snapshot, error) {
				return g.QuitGame(ctx, p, id)
			}))
			r.Post("/games/{id}/bet", h.game(func(ctx context.Context, p string, id uint64, c comm.Command) (mastermind.Snapshot, error) {
				return g.Bet(ctx, p, id, c.Amount)
			}))
			r.Post("/games/{id}/fold", h.game(func(ctx context.Context, p string, id uint64, _ comm.Command) (mastermind.Snapshot, error) {
				return g.Fold(ctx, p, id)
			}))
			r.Post("/games/{id}/afk", h.game(func(ctx context.Context, p string, id uint64, _ comm.Command) (mastermind.Snapshot, error) {
				return g.EmitAfk(ctx, p, id)
			}))
			r.Post("/games/{id}/afk/redeem", h.game(func(ctx context.Context, p string, id uint64, _ comm.Command) (mastermind.Snapshot, error) {
				return g.RedeemAfterAfk(ctx, p, id)
			}))
			r.Post("/games/{id}/secret", h.game(func(ctx context.Context, p string, id uint64, c comm.Command) (mastermind.Snapshot, error) {
				return g.PublishSecret(ctx, p, id, c.Commitment)
			}))
			r.Post("/games/{id}/guess", h.game(func(ctx context.Context, p string, id uint64, c comm.Command) (mastermind.Snapshot, error) {
				return g.TryGuess(ctx, p, id, c.Guess)
			}))
			r.Post("/games/{id}/feedback", h.game(func(ctx context.Context, p string, id uint64, c comm.Command) (mastermind.Snapshot, error) {
				return g.PublishFeedback(ctx, p, id, c.CC, c.NC)
			}))
			r.Post("/games/{id}/reveal", h.game(func(ctx context.Context, p string, id uint64, c comm.Command) (mastermind.Snapshot, error) {
				return g.RevealSecret(ctx, p, id, c.Secret, c.Salt)
			}))
			r.Post("/games/{id}/dispute", h.game(func(ctx context.Context, p string, id uint64, c comm.Command) (mastermind.Snapshot, error) {
				return g.StartDispute(ctx, p, id, c.Ref)
			}))
			r.Post("/games/{id}/turn", h.game(func(ctx context.Context, p string, id uint64, _ comm.Command) (mastermind.Snapshot, error) {
				return g.ChangeTurn(ctx, p, id)
			}))
		})
	})
}
