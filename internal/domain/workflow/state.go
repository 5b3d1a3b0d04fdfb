package workflow

// Domain identifies one of the request categories sharing the approval workflow
type Domain string

const (
	DomainTravel        Domain = "travel"
	DomainTransport     Domain = "transport"
	DomainVisa          Domain = "visa"
	DomainAccommodation Domain = "accommodation"
	DomainClaim         Domain = "claim"
)

var validDomains = map[Domain]bool{
	DomainTravel:        true,
	DomainTransport:     true,
	DomainVisa:          true,
	DomainAccommodation: true,
	DomainClaim:         true,
}

// AllDomains returns every supported domain in a stable order
func AllDomains() []Domain {
	return []Domain{DomainTravel, DomainTransport, DomainVisa, DomainAccommodation, DomainClaim}
}

// IsValid returns true if the domain is one of the supported request categories
func (d Domain) IsValid() bool {
	return validDomains[d]
}

// String returns the string representation of the domain
func (d Domain) String() string {
	return string(d)
}

// Status represents a request status. Each domain accepts only the subset
// listed in its Definition.
type Status string

const (
	StatusDraft Status = "DRAFT"

	// Pending approval steps
	StatusPendingDepartmentFocal Status = "PENDING_DEPARTMENT_FOCAL"
	StatusPendingLineManager     Status = "PENDING_LINE_MANAGER"
	StatusPendingHOD             Status = "PENDING_HOD"

	// Post-approval processing
	StatusProcessingWithTransportAdmin     Status = "PROCESSING_WITH_TRANSPORT_ADMIN"
	StatusProcessingWithVisaAdmin          Status = "PROCESSING_WITH_VISA_ADMIN"
	StatusProcessingWithAccommodationAdmin Status = "PROCESSING_WITH_ACCOMMODATION_ADMIN"
	StatusProcessingWithClaimsAdmin        Status = "PROCESSING_WITH_CLAIMS_ADMIN"

	// Completion
	StatusApproved  Status = "APPROVED"
	StatusCompleted Status = "COMPLETED"
	StatusProcessed Status = "PROCESSED"

	// Terminal
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
)

var knownStatuses = map[Status]bool{
	StatusDraft:                            true,
	StatusPendingDepartmentFocal:           true,
	StatusPendingLineManager:               true,
	StatusPendingHOD:                       true,
	StatusProcessingWithTransportAdmin:     true,
	StatusProcessingWithVisaAdmin:          true,
	StatusProcessingWithAccommodationAdmin: true,
	StatusProcessingWithClaimsAdmin:        true,
	StatusApproved:                         true,
	StatusCompleted:                        true,
	StatusProcessed:                        true,
	StatusRejected:                         true,
	StatusCancelled:                        true,
}

// IsKnown returns true if the status belongs to the global status vocabulary.
// Use Definition.Has to check membership for a specific domain.
func (s Status) IsKnown() bool {
	return knownStatuses[s]
}

// IsTerminal returns true for statuses that end a request without approval
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusCancelled
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// StatusKind partitions a domain's statuses
type StatusKind string

const (
	KindDraft      StatusKind = "draft"
	KindPending    StatusKind = "pending"
	KindProcessing StatusKind = "processing"
	KindCompleted  StatusKind = "completed"
	KindTerminal   StatusKind = "terminal"
	KindUnknown    StatusKind = "unknown"
)

// Roles that own approval steps
const (
	RoleRequestor          = "Requestor"
	RoleDepartmentFocal    = "DepartmentFocal"
	RoleLineManager        = "LineManager"
	RoleHOD                = "HOD"
	RoleTransportAdmin     = "TransportAdmin"
	RoleVisaAdmin          = "VisaAdmin"
	RoleAccommodationAdmin = "AccommodationAdmin"
	RoleClaimsAdmin        = "ClaimsAdmin"
)
