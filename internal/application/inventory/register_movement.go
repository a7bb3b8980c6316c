package inventory

import (
	"context"
	"strings"

	"github.com/jhoicas/pos-ledger/internal/application/dto"
	"github.com/jhoicas/pos-ledger/internal/domain/entity"
)

// AppendFromRequest adapta el request HTTP al caso de uso Append(ctx, AppendInput).
// El actor sale del token, nunca del cuerpo.
func (uc *LedgerUseCase) AppendFromRequest(ctx context.Context, actorID string, in dto.AppendMovementRequest) (*dto.MovementResponse, error) {
	mov, err := uc.Append(ctx, AppendInput{
		ProductID: in.ProductID,
		ActorID:   actorID,
		Kind:      entity.MovementKind(strings.ToUpper(strings.TrimSpace(in.Kind))),
		Quantity:  in.Quantity,
		Reason:    in.Reason,
		UnitCost:  in.UnitCost,
	})
	if err != nil {
		return nil, err
	}
	out := dto.ToMovementResponse(mov)
	return &out, nil
}
