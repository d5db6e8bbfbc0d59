// Package datasource declares the data-access ports shared by the services,
// the HTTP layer and the workers. Implementations live in memory (default),
// storage (SQL) and, for the write-only mirror, google.
package datasource

import (
	"context"

	"billcal/internal/core"
)

// Ports for data access. Lookups of a missing id return an error wrapping
// core.ErrNotFound; transport failures wrap core.ErrRemote.
type (
	ProfileReader interface {
		GetProfile(ctx context.Context, id int64) (core.Profile, error)
		ListProfiles(ctx context.Context) ([]core.Profile, error)
	}

	ProfileWriter interface {
		CreateProfile(ctx context.Context, p core.Profile) (core.Profile, error)
		UpdateProfile(ctx context.Context, p core.Profile) error
		// DeleteProfile removes the profile together with its bills and their instances.
		DeleteProfile(ctx context.Context, id int64) error
	}

	BillReader interface {
		GetBill(ctx context.Context, id int64) (core.Bill, error)
		ListBills(ctx context.Context, profileID int64) ([]core.Bill, error)
		ListAllBills(ctx context.Context) ([]core.Bill, error)
	}

	BillWriter interface {
		CreateBill(ctx context.Context, b core.Bill) (core.Bill, error)
		// DeleteBill removes the bill together with its instances.
		DeleteBill(ctx context.Context, id int64) error
	}

	InstanceReader interface {
		GetBillInstance(ctx context.Context, id int64) (core.BillInstance, error)
		// ListInstances returns the instances whose Month equals month, ordered by due date.
		ListInstances(ctx context.Context, month core.Date) ([]core.BillInstance, error)
		// ListInstancesDue returns the instances with from <= DueDate <= to,
		// whatever their billing month, ordered by due date.
		ListInstancesDue(ctx context.Context, from, to core.Date) ([]core.BillInstance, error)
		ListInstancesByBill(ctx context.Context, billID int64) ([]core.BillInstance, error)
	}

	InstanceWriter interface {
		CreateBillInstance(ctx context.Context, bi core.BillInstance) (core.BillInstance, error)
		UpdateBillInstance(ctx context.Context, bi core.BillInstance) error
		SetInstancePaid(ctx context.Context, id int64, paid bool) error
		DeleteBillInstance(ctx context.Context, id int64) error
	}

	// Lookup is the subset the event enricher needs.
	Lookup interface {
		GetBill(ctx context.Context, id int64) (core.Bill, error)
		GetProfile(ctx context.Context, id int64) (core.Profile, error)
	}

	// Store is a complete data source.
	Store interface {
		ProfileReader
		ProfileWriter
		BillReader
		BillWriter
		InstanceReader
		InstanceWriter
	}

	// Pinger is implemented by stores backed by a remote connection.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)
