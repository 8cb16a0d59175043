package rbac

// DefaultPolicy gates which routes a role may call. Ownership of an enrollment
// is checked separately by the coordinator.
var DefaultPolicy = Policy{
	RoleLearner: {
		"enrollment:create",
		"progress:view",
		"lesson:track",
		"attempt:create",
		"attempt:save",
		"attempt:submit",
		"attempt:view-own",
	},
	RolePayment: {
		"enrollment:create",
	},
	RoleAdmin: {
		"*",
	},
}
