package service

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/immutable/seaport/internal/model"
	"github.com/immutable/seaport/internal/pkg/apperrors"
	"github.com/immutable/seaport/internal/pkg/logger"
)

// Mint credits test assets to an account. This backs the admin API for
// seeding environments; production deployments front a real ledger and keep
// this route disabled via the admin key.
func (s *SettlementService) Mint(req *model.MintRequest) (*model.BalanceResponse, error) {
	account, err := parseAddress("account", req.Account)
	if err != nil {
		return nil, err
	}
	token, err := parseOptionalAddress("token", req.Token)
	if err != nil {
		return nil, err
	}
	identifier, err := parseOptionalBig("identifier", req.Identifier)
	if err != nil {
		return nil, err
	}
	amount, err := parseOptionalBig("amount", req.Amount)
	if err != nil {
		return nil, err
	}

	itemType := model.ItemType(req.ItemType)
	switch itemType {
	case model.ItemTypeNative:
		if amount.Sign() == 0 {
			return nil, apperrors.NewInvalidRequest("amount is required for native mints")
		}
		s.ledger.MintNative(account, amount)

	case model.ItemTypeERC20:
		if token == (common.Address{}) {
			return nil, apperrors.NewInvalidRequest("token is required for erc20 mints")
		}
		if amount.Sign() == 0 {
			return nil, apperrors.NewInvalidRequest("amount is required for erc20 mints")
		}
		s.ledger.MintERC20(token, account, amount)

	case model.ItemTypeERC721:
		if token == (common.Address{}) {
			return nil, apperrors.NewInvalidRequest("token is required for erc721 mints")
		}
		if err := s.ledger.MintERC721(token, identifier, account); err != nil {
			return nil, apperrors.New(apperrors.ErrInvalidRequest, err.Error(), err)
		}

	case model.ItemTypeERC1155:
		if token == (common.Address{}) {
			return nil, apperrors.NewInvalidRequest("token is required for erc1155 mints")
		}
		if amount.Sign() == 0 {
			return nil, apperrors.NewInvalidRequest("amount is required for erc1155 mints")
		}
		s.ledger.MintERC1155(token, identifier, account, amount)

	default:
		return nil, apperrors.NewInvalidRequest(fmt.Sprintf("item_type %d cannot be minted", req.ItemType))
	}

	logger.Info("assets minted",
		"account", account.Hex(),
		"item_type", itemType.String(),
		"token", token.Hex(),
		"amount", amount.String(),
	)
	return s.balanceOf(account, itemType, token, identifier), nil
}

// GetBalances reports an account's native balance plus, when a token is
// given, its position in that token.
func (s *SettlementService) GetBalances(accountHex, tokenHex, identifierStr string, itemType uint8) (*model.BalanceResponse, error) {
	account, err := parseAddress("account", accountHex)
	if err != nil {
		return nil, err
	}
	token, err := parseOptionalAddress("token", tokenHex)
	if err != nil {
		return nil, err
	}
	identifier, err := parseOptionalBig("identifier", identifierStr)
	if err != nil {
		return nil, err
	}
	return s.balanceOf(account, model.ItemType(itemType), token, identifier), nil
}

func (s *SettlementService) balanceOf(account common.Address, itemType model.ItemType, token common.Address, identifier *big.Int) *model.BalanceResponse {
	resp := &model.BalanceResponse{
		Account: account.Hex(),
		Native:  s.ledger.NativeBalance(account).String(),
	}
	if token == (common.Address{}) {
		return resp
	}
	resp.Token = token.Hex()
	switch itemType {
	case model.ItemTypeERC721:
		if owner, ok := s.ledger.OwnerOf(token, identifier); ok {
			resp.Owner = owner.Hex()
		}
	case model.ItemTypeERC1155:
		resp.Balance = s.ledger.ERC1155Balance(token, identifier, account).String()
	default:
		resp.Balance = s.ledger.ERC20Balance(token, account).String()
	}
	return resp
}
