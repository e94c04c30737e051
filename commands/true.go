package commands

// True does nothing, successfully. Its result is the boolean true.
func True(env *Env) int {
	env.SetResult(true)
	return 0
}

// False does nothing, unsuccessfully. Its result is the boolean false.
func False(env *Env) int {
	env.SetResult(false)
	return 1
}

var (
	_ BuiltinFunc = True
	_ BuiltinFunc = False
)

func init() {
	mustAddBuiltin("true", True)
	mustAddBuiltin("false", False)
}
