package cms

// Query strings for the typed fetchers. Image fields are resolved to URLs
// inline so block payloads arrive render-ready.
const (
	imageProjection = `{"url": asset->url, "alt": alt}`

	pageBySlugQuery = `*[_type == "page" && slug.current == $slug][0]{
  _id,
  title,
  "slug": slug.current,
  description,
  blocks[]{
    ...,
    "image": image` + imageProjection + `,
    slides[]{caption, "image": image` + imageProjection + `},
    members[]->{name, role, bio, "photoUrl": photo.asset->url}
  }
}`

	pageSlugsQuery = `*[_type == "page" && defined(slug.current)].slug.current`

	settingsQuery = `*[_type == "settings"][0]{
  siteName,
  contactEmail,
  phone,
  navigation[]{label, href},
  footer
}`

	sceneFields = `{
  "slug": slug.current,
  title,
  kind,
  route,
  defaultView,
  models[]{"url": coalesce(file.asset->url, url), theme, instances},
  markers[]{id, title, body, position, camera, route}
}`

	sceneBySlugQuery = `*[_type == "scene" && slug.current == $slug][0]` + sceneFields

	mainSceneQuery = `*[_type == "scene" && kind == "main"][0]` + sceneFields

	sceneSlugsQuery = `*[_type == "scene" && defined(slug.current)].slug.current`

	teamMembersQuery = `*[_type == "teamMember"] | order(order asc){
  name,
  role,
  bio,
  "photoUrl": photo.asset->url
}`
)
