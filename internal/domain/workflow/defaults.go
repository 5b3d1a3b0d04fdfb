package workflow

// DefaultTravelHODCostThreshold is the estimated cost above which travel needs HOD approval
const DefaultTravelHODCostThreshold = 1000

// DefaultOptions tunes the built-in definitions
type DefaultOptions struct {
	TravelHODCostThreshold float64
}

// DefaultDefinitions returns the built-in definitions for every domain
func DefaultDefinitions(opts DefaultOptions) []*Definition {
	threshold := opts.TravelHODCostThreshold
	if threshold <= 0 {
		threshold = DefaultTravelHODCostThreshold
	}

	return []*Definition{
		{
			Domain: DomainTravel,
			Pending: []Step{
				{Status: StatusPendingDepartmentFocal, Role: RoleDepartmentFocal},
				{Status: StatusPendingLineManager, Role: RoleLineManager},
				{
					Status: StatusPendingHOD,
					Role:   RoleHOD,
					SkipUnless: []Condition{
						{Field: "travelType", Op: OpIn, Values: []string{"Overseas", "HomeLeave", "Home-Leave"}},
						{Field: "estimatedCost", Op: OpGt, Number: threshold},
					},
				},
			},
			Final: StatusApproved,
		},
		{
			Domain: DomainTransport,
			Pending: []Step{
				{Status: StatusPendingLineManager, Role: RoleLineManager},
				{
					Status: StatusPendingHOD,
					Role:   RoleHOD,
					SkipUnless: []Condition{
						{Field: "tripType", Op: OpEq, Values: []string{"Outstation"}},
						{Field: "passengers", Op: OpGt, Number: 10},
					},
				},
			},
			Processing: []Step{
				{Status: StatusProcessingWithTransportAdmin, Role: RoleTransportAdmin},
			},
			Final: StatusCompleted,
		},
		{
			Domain: DomainVisa,
			Pending: []Step{
				{Status: StatusPendingLineManager, Role: RoleLineManager},
				{Status: StatusPendingHOD, Role: RoleHOD},
			},
			Processing: []Step{
				{Status: StatusProcessingWithVisaAdmin, Role: RoleVisaAdmin},
			},
			Final: StatusProcessed,
		},
		{
			Domain: DomainAccommodation,
			Pending: []Step{
				{Status: StatusPendingDepartmentFocal, Role: RoleDepartmentFocal},
				{
					Status: StatusPendingLineManager,
					Role:   RoleLineManager,
					SkipUnless: []Condition{
						{Field: "nights", Op: OpGt, Number: 5},
						{Field: "roomType", Op: OpEq, Values: []string{"Suite"}},
					},
				},
			},
			Processing: []Step{
				{Status: StatusProcessingWithAccommodationAdmin, Role: RoleAccommodationAdmin},
			},
			Final: StatusCompleted,
		},
		{
			Domain: DomainClaim,
			Pending: []Step{
				{Status: StatusPendingDepartmentFocal, Role: RoleDepartmentFocal},
				{Status: StatusPendingLineManager, Role: RoleLineManager},
				{
					Status: StatusPendingHOD,
					Role:   RoleHOD,
					SkipUnless: []Condition{
						{Field: "totalAmount", Op: OpGt, Number: 1000},
					},
				},
			},
			Processing: []Step{
				{Status: StatusProcessingWithClaimsAdmin, Role: RoleClaimsAdmin},
			},
			Final: StatusProcessed,
		},
	}
}

// DefaultRoutingTable builds a routing table from the built-in definitions
func DefaultRoutingTable(opts DefaultOptions) *RoutingTable {
	table, err := NewRoutingTable(DefaultDefinitions(opts)...)
	if err != nil {
		panic(err)
	}
	return table
}
