package coreasset

import (
	"context"
	"fmt"

	"burnfaucet/core/events"
	"burnfaucet/core/runtime"
	"burnfaucet/core/types"
	"burnfaucet/crypto"
	"burnfaucet/native/system"
)

// Program is the single-asset registry. Assets are owned by an address, may
// belong to a collection, and carry plugins and external adapters.
type Program struct {
	id crypto.Address
}

// New returns the registry bound to id.
func New(id crypto.Address) *Program { return &Program{id: id} }

func (p *Program) ID() crypto.Address { return p.id }

// Process implements runtime.Program.
func (p *Program) Process(ctx context.Context, inv *runtime.Invocation) error {
	data := inv.Data()
	if len(data) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidInstruction)
	}
	switch data[0] {
	case TagCreateCollection:
		var args CreateCollectionArgs
		if err := decodeArgs(data[1:], &args); err != nil {
			return err
		}
		return p.createCollection(ctx, inv, args)
	case TagCreate:
		var args CreateArgs
		if err := decodeArgs(data[1:], &args); err != nil {
			return err
		}
		return p.create(ctx, inv, args)
	case TagWriteData:
		var args WriteDataArgs
		if err := decodeArgs(data[1:], &args); err != nil {
			return err
		}
		return p.writeData(inv, args)
	case TagBurn:
		return p.burn(inv)
	}
	return fmt.Errorf("%w: unknown tag %d", ErrInvalidInstruction, data[0])
}

// optionalAccount resolves the account at i, treating the program id as absent.
func (p *Program) optionalAccount(inv *runtime.Invocation, i int) (*crypto.Address, error) {
	meta, err := inv.Account(i)
	if err != nil {
		return nil, err
	}
	if meta.Address == p.id {
		return nil, nil
	}
	addr := meta.Address
	return &addr, nil
}

func (p *Program) accountAt(inv *runtime.Invocation, i int) (crypto.Address, error) {
	meta, err := inv.Account(i)
	if err != nil {
		return crypto.Address{}, err
	}
	return meta.Address, nil
}

func (p *Program) initialise(ctx context.Context, inv *runtime.Invocation, payer, target crypto.Address, data []byte) error {
	rent := inv.Rent().MinimumBalance(len(data))
	if err := inv.Invoke(ctx, system.CreateAccount(payer, target, rent, uint64(len(data)), p.id)); err != nil {
		return err
	}
	acc, err := inv.Load(target)
	if err != nil {
		return err
	}
	acc.Data = data
	return inv.Store(target, acc)
}

func (p *Program) loadCollection(inv *runtime.Invocation, addr crypto.Address) (*types.Account, *CollectionV1, error) {
	acc, err := inv.Load(addr)
	if err != nil {
		return nil, nil, err
	}
	if acc.Owner != p.id || len(acc.Data) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, addr)
	}
	c, err := DecodeCollection(acc.Data)
	if err != nil {
		return nil, nil, err
	}
	return acc, c, nil
}

func (p *Program) loadAsset(inv *runtime.Invocation, addr crypto.Address) (*types.Account, *AssetV1, error) {
	acc, err := inv.Load(addr)
	if err != nil {
		return nil, nil, err
	}
	if acc.Owner != p.id || len(acc.Data) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrAssetNotFound, addr)
	}
	asset, err := DecodeAsset(acc.Data)
	if err != nil {
		return nil, nil, err
	}
	return acc, asset, nil
}

func validatePlugins(plugins []PluginRecord) error {
	seen := make(map[PluginType]struct{}, len(plugins))
	for _, pl := range plugins {
		if _, dup := seen[pl.Type]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicatePlugin, pl.Type)
		}
		seen[pl.Type] = struct{}{}
	}
	return nil
}

func (p *Program) createCollection(ctx context.Context, inv *runtime.Invocation, args CreateCollectionArgs) error {
	collection, err := p.accountAt(inv, 0)
	if err != nil {
		return err
	}
	authority, err := p.accountAt(inv, 1)
	if err != nil {
		return err
	}
	payer, err := p.accountAt(inv, 2)
	if err != nil {
		return err
	}
	if err := validatePlugins(args.Plugins); err != nil {
		return err
	}
	data, err := EncodeCollection(&CollectionV1{
		UpdateAuthority: authority,
		Name:            args.Name,
		URI:             args.URI,
		Plugins:         args.Plugins,
		Adapters:        args.Adapters,
	})
	if err != nil {
		return err
	}
	inv.Log("Instruction: CreateCollection")
	return p.initialise(ctx, inv, payer, collection, data)
}

func (p *Program) create(ctx context.Context, inv *runtime.Invocation, args CreateArgs) error {
	assetAddr, err := p.accountAt(inv, 0)
	if err != nil {
		return err
	}
	collection, err := p.optionalAccount(inv, 1)
	if err != nil {
		return err
	}
	authorityPtr, err := p.optionalAccount(inv, 2)
	if err != nil {
		return err
	}
	payer, err := p.accountAt(inv, 3)
	if err != nil {
		return err
	}
	owner, err := p.accountAt(inv, 4)
	if err != nil {
		return err
	}
	authority := payer
	if authorityPtr != nil {
		authority = *authorityPtr
	}
	if err := validatePlugins(args.Plugins); err != nil {
		return err
	}
	asset := &AssetV1{
		Owner:           owner,
		UpdateAuthority: UpdateAuthority{Kind: UpdateAuthorityAddress, Address: authority},
		Name:            args.Name,
		URI:             args.URI,
		Plugins:         args.Plugins,
		Adapters:        args.Adapters,
	}
	if collection != nil {
		colAcc, col, err := p.loadCollection(inv, *collection)
		if err != nil {
			return err
		}
		if col.UpdateAuthority != authority || !inv.IsSigner(authority) {
			return fmt.Errorf("%w: collection %s", ErrInvalidAuthority, *collection)
		}
		col.NumMinted++
		col.CurrentSize++
		if colAcc.Data, err = EncodeCollection(col); err != nil {
			return err
		}
		if err := inv.Store(*collection, colAcc); err != nil {
			return err
		}
		asset.UpdateAuthority = UpdateAuthority{Kind: UpdateAuthorityCollection, Address: *collection}
	}
	data, err := EncodeAsset(asset)
	if err != nil {
		return err
	}
	inv.Log("Instruction: Create")
	return p.initialise(ctx, inv, payer, assetAddr, data)
}

// resolveUpdateAuthority returns the address allowed to act as the asset's
// update authority.
func (p *Program) resolveUpdateAuthority(inv *runtime.Invocation, asset *AssetV1, collection *crypto.Address) (crypto.Address, error) {
	switch asset.UpdateAuthority.Kind {
	case UpdateAuthorityAddress:
		return asset.UpdateAuthority.Address, nil
	case UpdateAuthorityCollection:
		if collection == nil {
			return crypto.Address{}, ErrMissingCollection
		}
		if *collection != asset.UpdateAuthority.Address {
			return crypto.Address{}, fmt.Errorf("%w: %s", ErrInvalidCollection, *collection)
		}
		_, col, err := p.loadCollection(inv, *collection)
		if err != nil {
			return crypto.Address{}, err
		}
		return col.UpdateAuthority, nil
	}
	return crypto.Address{}, fmt.Errorf("%w: asset has no update authority", ErrInvalidAuthority)
}

func (p *Program) writeData(inv *runtime.Invocation, args WriteDataArgs) error {
	assetAddr, err := p.accountAt(inv, 0)
	if err != nil {
		return err
	}
	collection, err := p.optionalAccount(inv, 1)
	if err != nil {
		return err
	}
	authority, err := p.accountAt(inv, 2)
	if err != nil {
		return err
	}
	acc, asset, err := p.loadAsset(inv, assetAddr)
	if err != nil {
		return err
	}
	if !inv.IsSigner(authority) {
		return fmt.Errorf("%w: %s did not sign", ErrInvalidAuthority, authority)
	}
	if args.Key.Authority.Kind != AuthorityUpdateAuthority {
		return fmt.Errorf("%w: only update-authority adapters are writable", ErrInvalidAuthority)
	}
	ua, err := p.resolveUpdateAuthority(inv, asset, collection)
	if err != nil {
		return err
	}
	if ua != authority {
		return fmt.Errorf("%w: %s is not the update authority", ErrInvalidAuthority, authority)
	}

	switch args.Key.Type {
	case AdapterAppData:
		idx := -1
		for i, a := range asset.Adapters {
			if a.Key == args.Key {
				idx = i
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrAdapterNotFound, args.Key)
		}
		asset.Adapters[idx].Data = append([]byte(nil), args.Data...)
	case AdapterDataSection:
		if collection == nil {
			return ErrMissingCollection
		}
		_, col, err := p.loadCollection(inv, *collection)
		if err != nil {
			return err
		}
		if _, ok := findAdapter(col.Adapters, LinkedAppDataKey(args.Key.Authority)); !ok {
			return fmt.Errorf("%w: collection has no %s", ErrAdapterNotFound, LinkedAppDataKey(args.Key.Authority))
		}
		replaced := false
		for i, a := range asset.Adapters {
			if a.Key == args.Key {
				asset.Adapters[i].Data = append([]byte(nil), args.Data...)
				replaced = true
			}
		}
		if !replaced {
			asset.Adapters = append(asset.Adapters, AdapterRecord{Key: args.Key, Data: append([]byte(nil), args.Data...)})
		}
	default:
		return fmt.Errorf("%w: adapter %s is not writable on assets", ErrInvalidInstruction, args.Key)
	}
	if acc.Data, err = EncodeAsset(asset); err != nil {
		return err
	}
	inv.Log("Instruction: WriteExternalPluginAdapterData")
	return inv.Store(assetAddr, acc)
}

func (p *Program) burn(inv *runtime.Invocation) error {
	assetAddr, err := p.accountAt(inv, 0)
	if err != nil {
		return err
	}
	collection, err := p.optionalAccount(inv, 1)
	if err != nil {
		return err
	}
	payer, err := p.accountAt(inv, 2)
	if err != nil {
		return err
	}
	authorityPtr, err := p.optionalAccount(inv, 3)
	if err != nil {
		return err
	}
	authority := payer
	if authorityPtr != nil {
		authority = *authorityPtr
	}
	if !inv.IsSigner(authority) {
		return fmt.Errorf("%w: %s did not sign", ErrInvalidAuthority, authority)
	}
	acc, asset, err := p.loadAsset(inv, assetAddr)
	if err != nil {
		return err
	}
	inv.Log("Instruction: Burn")

	if asset.UpdateAuthority.Kind == UpdateAuthorityCollection {
		if collection == nil {
			return ErrMissingCollection
		}
		if *collection != asset.UpdateAuthority.Address {
			return fmt.Errorf("%w: %s", ErrInvalidCollection, *collection)
		}
	} else if collection != nil {
		return fmt.Errorf("%w: asset is not in %s", ErrInvalidCollection, *collection)
	}
	// Assets are owner-managed: the update authority may edit data but
	// never destroy a holder's asset.
	if authority != asset.Owner {
		return fmt.Errorf("%w: %s does not own %s", ErrInvalidAuthority, authority, assetAddr)
	}

	if collection != nil {
		colAcc, col, err := p.loadCollection(inv, *collection)
		if err != nil {
			return err
		}
		if col.CurrentSize > 0 {
			col.CurrentSize--
		}
		if colAcc.Data, err = EncodeCollection(col); err != nil {
			return err
		}
		if err := inv.Store(*collection, colAcc); err != nil {
			return err
		}
	}

	refund := acc.Lamports
	if err := inv.Store(assetAddr, &types.Account{Owner: system.ProgramID}); err != nil {
		return err
	}
	dst, err := inv.Load(payer)
	if err != nil {
		return err
	}
	dst.Lamports += refund
	if err := inv.Store(payer, dst); err != nil {
		return err
	}
	inv.Emit(events.CoreAssetBurned{Asset: assetAddr, Owner: asset.Owner, Collection: collection})
	return nil
}
