package votingledger

import (
	"log/slog"

	httpadapter "voteledger/contexts/governance/voting-ledger/adapters/http"
	"voteledger/contexts/governance/voting-ledger/adapters/memory"
	"voteledger/contexts/governance/voting-ledger/application/commands"
	"voteledger/contexts/governance/voting-ledger/application/queries"
	"voteledger/contexts/governance/voting-ledger/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Polls      ports.PollRepository
	Candidates ports.CandidateRepository
	Votes      ports.VoteRepository
	Outbox     ports.OutboxWriter
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
}

func NewModule(deps Dependencies) Module {
	pollUseCase := commands.PollUseCase{
		Polls:  deps.Polls,
		Outbox: deps.Outbox,
		Clock:  deps.Clock,
		IDGen:  deps.IDGen,
		Logger: deps.Logger,
	}
	candidateUseCase := commands.CandidateUseCase{
		Polls:      deps.Polls,
		Candidates: deps.Candidates,
		Outbox:     deps.Outbox,
		Clock:      deps.Clock,
		IDGen:      deps.IDGen,
		Logger:     deps.Logger,
	}
	voteUseCase := commands.VoteUseCase{
		Polls:      deps.Polls,
		Candidates: deps.Candidates,
		Votes:      deps.Votes,
		Outbox:     deps.Outbox,
		Clock:      deps.Clock,
		IDGen:      deps.IDGen,
		Logger:     deps.Logger,
	}
	recordsUseCase := queries.RecordsUseCase{
		Polls:      deps.Polls,
		Candidates: deps.Candidates,
		Votes:      deps.Votes,
	}
	resultsUseCase := queries.ResultsUseCase{
		Polls:      deps.Polls,
		Candidates: deps.Candidates,
	}
	return Module{
		Handler: httpadapter.Handler{
			Polls:      pollUseCase,
			Candidates: candidateUseCase,
			Votes:      voteUseCase,
			Records:    recordsUseCase,
			Results:    resultsUseCase,
			Logger:     deps.Logger,
		},
	}
}

func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Polls:      store,
		Candidates: store,
		Votes:      store,
		Outbox:     store,
		Clock:      store,
		IDGen:      store,
		Logger:     logger,
	})
	module.Store = store
	return module
}
