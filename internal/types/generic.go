package types

// Bindings 由类型形参和类型实参构造替换表
func Bindings(vars, args []*Type) map[*Type]*Type {
	b := make(map[*Type]*Type, len(vars))
	for i, v := range vars {
		if i < len(args) {
			b[v] = args[i]
		}
	}
	return b
}

// Substitute 把 t 中出现的类型形参按 b 替换
func Substitute(t *Type, b map[*Type]*Type) *Type {
	if t == nil || len(b) == 0 {
		return t
	}
	switch t.kind {
	case Param:
		if r, ok := b[t]; ok {
			return r
		}
		return t
	case Nullable:
		return NullableOf(Substitute(t.elem, b))
	case Array:
		return ArrayOf(Substitute(t.elem, b))
	case Quoted:
		return QuotedOf(Substitute(t.elem, b))
	case Func:
		params := make([]*Type, len(t.params))
		for i, p := range t.params {
			params[i] = Substitute(p, b)
		}
		return FuncOf(params, Substitute(t.result, b))
	}
	if len(t.typeVars) > 0 && t.template == nil {
		// 模板自身出现在签名里（如 List<T> 的方法返回 List<T>）
		args := make([]*Type, len(t.typeVars))
		changed := false
		for i, v := range t.typeVars {
			args[i] = Substitute(v, b)
			changed = changed || args[i] != v
		}
		if changed {
			return t.Instantiate(args...)
		}
		return t
	}
	if t.template != nil {
		args := make([]*Type, len(t.args))
		changed := false
		for i, a := range t.args {
			args[i] = Substitute(a, b)
			changed = changed || args[i] != a
		}
		if changed {
			return t.template.Instantiate(args...)
		}
	}
	return t
}

// Unify 尝试把含类型形参的 pattern 与具体类型 actual 匹配，
// 成功时把推导出的形参绑定写入 b
func Unify(pattern, actual *Type, b map[*Type]*Type) bool {
	if pattern == nil || actual == nil {
		return pattern == actual
	}
	if pattern.kind == Param {
		if bound, ok := b[pattern]; ok {
			return Identical(bound, actual)
		}
		b[pattern] = actual
		return true
	}
	if pattern.kind != actual.kind {
		return false
	}
	switch pattern.kind {
	case Nullable, Array, Quoted:
		return Unify(pattern.elem, actual.elem, b)
	case Func:
		if len(pattern.params) != len(actual.params) {
			return false
		}
		for i := range pattern.params {
			if !Unify(pattern.params[i], actual.params[i], b) {
				return false
			}
		}
		return Unify(pattern.result, actual.result, b)
	}
	// 开放模板 vs 实例
	if len(pattern.typeVars) > 0 && pattern.template == nil {
		if actual.template != pattern || len(actual.args) != len(pattern.typeVars) {
			return false
		}
		for i, v := range pattern.typeVars {
			if !Unify(v, actual.args[i], b) {
				return false
			}
		}
		return true
	}
	if pattern.template != nil {
		if actual.template != pattern.template || len(actual.args) != len(pattern.args) {
			return false
		}
		for i := range pattern.args {
			if !Unify(pattern.args[i], actual.args[i], b) {
				return false
			}
		}
		return true
	}
	return Identical(pattern, actual)
}

// FreeParams 按首次出现顺序收集 t 中的类型形参
func FreeParams(t *Type) []*Type {
	var out []*Type
	seen := make(map[*Type]bool)
	var walk func(*Type)
	walk = func(t *Type) {
		if t == nil {
			return
		}
		if t.kind == Param {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
			return
		}
		walk(t.elem)
		for _, p := range t.params {
			walk(p)
		}
		walk(t.result)
		for _, a := range t.args {
			walk(a)
		}
		for _, v := range t.typeVars {
			walk(v)
		}
	}
	walk(t)
	return out
}
