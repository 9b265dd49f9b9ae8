package facts

import "sort"

// Relation names.
const (
	KindFiles                  = "files"
	KindPackages               = "packages"
	KindCUPackage              = "cupackage"
	KindLocations              = "locations_default"
	KindHasLocation            = "hasLocation"
	KindClasses                = "classes"
	KindInterfaces             = "interfaces"
	KindFileClass              = "file_class"
	KindIsEnumType             = "isEnumType"
	KindIsAnonymClass          = "isAnonymClass"
	KindIsLocalClass           = "isLocalClassOrInterface"
	KindEnclInReftype          = "enclInReftype"
	KindExtendsReftype         = "extendsReftype"
	KindImplInterface          = "implInterface"
	KindTypeArgs               = "typeArgs"
	KindIsParameterized        = "isParameterized"
	KindIsRaw                  = "isRaw"
	KindErasure                = "erasure"
	KindTypeVars               = "typeVars"
	KindTypeBounds             = "typeBounds"
	KindWildcards              = "wildcards"
	KindArrays                 = "arrays"
	KindPrimitives             = "primitives"
	KindKtNullableTypes        = "kt_nullable_types"
	KindKtNotNullTypes         = "kt_notnull_types"
	KindKtTypeAlias            = "kt_type_alias"
	KindModifiers              = "modifiers"
	KindHasModifier            = "hasModifier"
	KindMethods                = "methods"
	KindMethodsKotlinType      = "methodsKotlinType"
	KindConstrs                = "constrs"
	KindConstrsKotlinType      = "constrsKotlinType"
	KindParams                 = "params"
	KindParamsKotlinType       = "paramsKotlinType"
	KindParamName              = "paramName"
	KindIsVarargsParam         = "isVarargsParam"
	KindKtExtensionFunctions   = "ktExtensionFunctions"
	KindFields                 = "fields"
	KindFieldsKotlinType       = "fieldsKotlinType"
	KindFieldDecls             = "fielddecls"
	KindFieldDeclaredIn        = "fieldDeclaredIn"
	KindKtProperties           = "ktProperties"
	KindKtPropertyGetters      = "ktPropertyGetters"
	KindKtPropertySetters      = "ktPropertySetters"
	KindKtPropertyBackingField = "ktPropertyBackingFields"
	KindClassObject            = "class_object"
	KindTypeCompanionObject    = "type_companion_object"
	KindIsEnumConst            = "isEnumConst"
	KindKtSyntheticBody        = "ktSyntheticBody"
	KindKtLocalFunction        = "ktLocalFunction"
	KindLocalVars              = "localvars"
	KindLocalVarsKotlinType    = "localvarsKotlinType"
	KindStmts                  = "stmts"
	KindExprs                  = "exprs"
	KindExprsKotlinType        = "exprsKotlinType"
	KindCallableEnclosingExpr  = "callableEnclosingExpr"
	KindStatementEnclosingExpr = "statementEnclosingExpr"
	KindVariableBinding        = "variableBinding"
	KindCallableBinding        = "callableBinding"
	KindMemberRefBinding       = "memberRefBinding"
	KindNamestrings            = "namestrings"
	KindWhenIf                 = "when_if"
	KindWhenBranchElse         = "when_branch_else"
	KindLambdaKind             = "lambdaKind"
	KindBreakContinueTargets   = "ktBreakContinueTargets"
	KindDiagnostics            = "diagnostics"
)

// Schema maps each relation to its column names. Column i of a relation
// holds argument i of its facts.
var Schema = map[string][]string{
	KindFiles:                  {"id", "name"},
	KindPackages:               {"id", "name"},
	KindCUPackage:              {"file", "package"},
	KindLocations:              {"id", "file", "startLine", "startColumn", "endLine", "endColumn"},
	KindHasLocation:            {"locatable", "location"},
	KindClasses:                {"id", "name", "package", "sourceId"},
	KindInterfaces:             {"id", "name", "package", "sourceId"},
	KindFileClass:              {"id"},
	KindIsEnumType:             {"classId"},
	KindIsAnonymClass:          {"classId", "expr"},
	KindIsLocalClass:           {"classId", "stmt"},
	KindEnclInReftype:          {"child", "parent"},
	KindExtendsReftype:         {"id", "supertype"},
	KindImplInterface:          {"id", "supertype"},
	KindTypeArgs:               {"argument", "pos", "parent"},
	KindIsParameterized:        {"id"},
	KindIsRaw:                  {"id"},
	KindErasure:                {"type", "erasure"},
	KindTypeVars:               {"id", "name", "pos", "parent"},
	KindTypeBounds:             {"id", "type", "pos", "parent"},
	KindWildcards:              {"id", "name", "kind"},
	KindArrays:                 {"id", "name", "elementType", "dimension", "componentType"},
	KindPrimitives:             {"id", "name"},
	KindKtNullableTypes:        {"id", "javaType"},
	KindKtNotNullTypes:         {"id", "javaType"},
	KindKtTypeAlias:            {"id", "name", "kotlinType"},
	KindModifiers:              {"id", "name"},
	KindHasModifier:            {"id", "modifier"},
	KindMethods:                {"id", "name", "signature", "returnType", "parent", "sourceId"},
	KindMethodsKotlinType:      {"id", "kotlinType"},
	KindConstrs:                {"id", "name", "signature", "returnType", "parent", "sourceId"},
	KindConstrsKotlinType:      {"id", "kotlinType"},
	KindParams:                 {"id", "type", "pos", "parent", "sourceId"},
	KindParamsKotlinType:       {"id", "kotlinType"},
	KindParamName:              {"id", "name"},
	KindIsVarargsParam:         {"param"},
	KindKtExtensionFunctions:   {"id", "typeId", "kotlinTypeId"},
	KindFields:                 {"id", "name", "type", "parent", "sourceId"},
	KindFieldsKotlinType:       {"id", "kotlinType"},
	KindFieldDecls:             {"id", "parent"},
	KindFieldDeclaredIn:        {"fieldId", "fieldDeclId", "pos"},
	KindKtProperties:           {"id", "name"},
	KindKtPropertyGetters:      {"id", "getter"},
	KindKtPropertySetters:      {"id", "setter"},
	KindKtPropertyBackingField: {"id", "backingField"},
	KindClassObject:            {"id", "instance"},
	KindTypeCompanionObject:    {"id", "instance", "companionObject"},
	KindIsEnumConst:            {"field"},
	KindKtSyntheticBody:        {"id", "kind"},
	KindKtLocalFunction:        {"id"},
	KindLocalVars:              {"id", "name", "type", "parentid"},
	KindLocalVarsKotlinType:    {"id", "kotlinType"},
	KindStmts:                  {"id", "kind", "parent", "idx", "bodydecl"},
	KindExprs:                  {"id", "kind", "type", "parent", "idx"},
	KindExprsKotlinType:        {"id", "kotlinType"},
	KindCallableEnclosingExpr:  {"id", "callable_id"},
	KindStatementEnclosingExpr: {"id", "statement_id"},
	KindVariableBinding:        {"expr", "variable"},
	KindCallableBinding:        {"callerid", "callee"},
	KindMemberRefBinding:       {"id", "callable"},
	KindNamestrings:            {"name", "value", "parent"},
	KindWhenIf:                 {"id"},
	KindWhenBranchElse:         {"id"},
	KindLambdaKind:             {"exprId", "bodyKind"},
	KindBreakContinueTargets:   {"id", "target"},
	KindDiagnostics:            {"id", "file", "severity", "message", "location"},
}

// Kinds returns every relation name in sorted order.
func Kinds() []string {
	out := make([]string, 0, len(Schema))
	for k := range Schema {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Arity returns the column count of kind, or -1 when kind is unknown.
func Arity(kind string) int {
	cols, ok := Schema[kind]
	if !ok {
		return -1
	}
	return len(cols)
}
