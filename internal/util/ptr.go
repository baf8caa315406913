package util

func DerefInt(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}
