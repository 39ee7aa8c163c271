// Package client is the Go SDK for a running votechaind server.
//
// # Casting a vote
//
//	c := client.MustNew("http://localhost:5000")
//	voter, err := c.RegisterVoter(ctx, "Ann", "ann@example.com")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	receipt, err := c.CastVote(ctx, voter.ID, candidateID)
//
// # Administrative calls
//
// Candidate registration, forced sealing and the voter list require an
// admin token, minted with `votechain admin-token`:
//
//	c := client.MustNew(base, client.WithBearerToken(token))
//	cand, err := c.RegisterCandidate(ctx, "Alice Johnson", "Progressive Party")
//
// Errors returned for non-2xx responses are *StatusError values; use
// errors.As to inspect the HTTP status.
package client
