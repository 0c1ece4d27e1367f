package shopify

// Query and mutation documents. They are fixed contracts of the Admin API;
// every value is passed as a variable.

const fieldDefinitionSelection = `
	key
	name
	description
	required
	type {
		category
		name
	}
	validations {
		name
		type
		value
	}`

const queryDefinitions = `
query metaobjectDefinitions($first: Int!, $after: String) {
	metaobjectDefinitions(first: $first, after: $after) {
		nodes {
			id
			name
			type
		}
		pageInfo {
			hasNextPage
			endCursor
		}
	}
}`

const queryDefinitionByType = `
query metaobjectDefinitionByType($type: String!) {
	metaobjectDefinitionByType(type: $type) {
		id
		name
		type
		description
		capabilities {
			publishable {
				enabled
			}
		}
		fieldDefinitions {` + fieldDefinitionSelection + `
		}
		metaobjectsCount
	}
}`

const queryDefinitionTypeByID = `
query metaobjectDefinition($id: ID!) {
	metaobjectDefinition(id: $id) {
		type
	}
}`

const queryDefinitionIDByType = `
query metaobjectDefinitionIdByType($type: String!) {
	metaobjectDefinitionByType(type: $type) {
		id
	}
}`

const queryMetaobjects = `
query metaobjects($type: String!, $first: Int!, $after: String) {
	metaobjects(type: $type, first: $first, after: $after) {
		nodes {
			id
			handle
			type
			displayName
			capabilities {
				publishable {
					status
				}
			}
			fields {
				key
				value
				type
			}
		}
		pageInfo {
			hasNextPage
			endCursor
		}
	}
}`

const mutationDefinitionCreate = `
mutation metaobjectDefinitionCreate($definition: MetaobjectDefinitionCreateInput!) {
	metaobjectDefinitionCreate(definition: $definition) {
		metaobjectDefinition {
			id
			name
			type
			fieldDefinitions {` + fieldDefinitionSelection + `
			}
		}
		userErrors {
			field
			message
			code
		}
	}
}`

const mutationDefinitionUpdate = `
mutation metaobjectDefinitionUpdate($id: ID!, $definition: MetaobjectDefinitionUpdateInput!) {
	metaobjectDefinitionUpdate(id: $id, definition: $definition) {
		metaobjectDefinition {
			id
			name
			type
			fieldDefinitions {` + fieldDefinitionSelection + `
			}
		}
		userErrors {
			field
			message
			code
		}
	}
}`

const mutationMetaobjectUpsert = `
mutation metaobjectUpsert($handle: MetaobjectHandleInput!, $metaobject: MetaobjectUpsertInput!) {
	metaobjectUpsert(handle: $handle, metaobject: $metaobject) {
		metaobject {
			id
			handle
			type
			fields {
				key
				value
				type
			}
		}
		userErrors {
			field
			message
			code
		}
	}
}`

const queryProductHandle = `
query product($id: ID!) {
	product(id: $id) {
		handle
	}
}`

const queryProductByHandle = `
query productByHandle($handle: String!) {
	productByHandle(handle: $handle) {
		id
	}
}`

const queryCollectionHandle = `
query collection($id: ID!) {
	collection(id: $id) {
		handle
	}
}`

const queryCollectionByHandle = `
query collectionByHandle($handle: String!) {
	collectionByHandle(handle: $handle) {
		id
	}
}`

const queryFileAlt = `
query file($id: ID!) {
	node(id: $id) {
		... on MediaImage {
			alt
		}
		... on GenericFile {
			alt
		}
		... on Video {
			alt
		}
	}
}`

const queryFileByAlt = `
query files($query: String!) {
	files(first: 1, query: $query) {
		nodes {
			id
		}
	}
}`
